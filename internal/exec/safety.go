// Package exec provides executable safety validation utilities.
package exec

import (
	"regexp"
	"strings"
)

// Pattern definitions for executable safety validation.
var (
	// ShellMetachars matches shell metacharacters that could enable command injection.
	ShellMetachars = regexp.MustCompile(`[;&|` + "`" + `$<>]`)

	// ControlChars matches control characters like newlines and carriage returns.
	ControlChars = regexp.MustCompile(`[\r\n]`)

	// QuoteChars matches quote characters that could enable argument injection.
	QuoteChars = regexp.MustCompile(`["']`)

	// BareNamePattern matches safe bare executable names without paths.
	BareNamePattern = regexp.MustCompile(`^[A-Za-z0-9._+-]+$`)

	// WindowsDriveLetter matches Windows drive letter paths (e.g., C:\).
	WindowsDriveLetter = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
)

// IsLikelyPath checks if the value appears to be a file path rather than a bare name.
// It returns true for values starting with . or ~, values containing / or \
// anywhere, or values matching a Windows drive letter.
func IsLikelyPath(value string) bool {
	if value == "" {
		return false
	}

	// Check for common path prefixes
	if strings.HasPrefix(value, ".") || strings.HasPrefix(value, "~") {
		return true
	}

	// Check for path separators
	if strings.Contains(value, "/") || strings.Contains(value, "\\") {
		return true
	}

	// Check for Windows drive letter (e.g., C:\)
	return WindowsDriveLetter.MatchString(value)
}

// IsSafeExecutableValue validates that an executable name or path is safe to use.
// It checks for:
// 1. Empty or nil values (rejected)
// 2. Null bytes (rejected)
// 3. Control characters like newlines (rejected)
// 4. Shell metacharacters ;&|`$<> (rejected)
// 5. Quote characters "' (rejected)
// 6. Paths (starting with . or ~, containing / or \, or with a drive letter) (allowed)
// 7. Values starting with - (rejected for option injection)
// 8. Bare names matching [A-Za-z0-9._+-]+ (allowed)
func IsSafeExecutableValue(value string) bool {
	if value == "" {
		return false
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}

	// Check for null bytes
	if strings.Contains(trimmed, "\x00") {
		return false
	}

	// Check for control characters (newlines, carriage returns)
	if ControlChars.MatchString(trimmed) {
		return false
	}

	// Check for shell metacharacters
	if ShellMetachars.MatchString(trimmed) {
		return false
	}

	// Check for quote characters
	if QuoteChars.MatchString(trimmed) {
		return false
	}

	// If it looks like a path, allow it (paths have already passed the above checks)
	if IsLikelyPath(trimmed) {
		return true
	}

	// For bare names, reject option injection
	if strings.HasPrefix(trimmed, "-") {
		return false
	}

	// Validate bare name pattern
	return BareNamePattern.MatchString(trimmed)
}
