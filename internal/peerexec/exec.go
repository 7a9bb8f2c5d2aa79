// Package peerexec implements SubprocessPeerExec (C7): the one-shot
// fallback invocation of the codex CLI with schema-constrained structured
// output, used when the persistent peer client (internal/peer) cannot
// produce a response.
package peerexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	execsafety "github.com/local/assistantbridge/internal/exec"
	"github.com/local/assistantbridge/internal/store"
)

// Config configures the one-shot codex exec invocation.
type Config struct {
	Path    string
	WorkDir string
}

// Result is the outcome of a one-shot invocation.
type Result struct {
	Response        *string
	InvocationError string
}

// Exec runs `codex exec --json --full-auto --skip-git-repo-check
// [--output-schema <path>] <prompt>`, recording an Invocation audit row for
// the call's full lifecycle, per spec.md §4.8.
func Exec(ctx context.Context, cfg Config, st store.Store, target store.AssistantId, messageID, prompt string, messageType store.MessageType, timeout time.Duration, useOutputSchema bool) (*Result, error) {
	args, schemaPath, err := buildArgs(cfg, prompt, messageType, useOutputSchema)
	if schemaPath != "" {
		defer os.Remove(schemaPath)
	}
	if err != nil {
		return nil, fmt.Errorf("build exec args: %w", err)
	}

	inv := &store.Invocation{
		ID:             uuid.NewString(),
		Target:         target,
		MessageID:      messageID,
		InvocationType: store.InvocationSubprocessExec,
	}
	commandStr := cfg.Path + " " + joinArgs(args)
	inv.Command = &commandStr

	if err := st.CreateInvocation(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invocation: %w", err)
	}
	if err := st.StartInvocation(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("start invocation: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, cfg.Path, args...)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	stdoutStr := stdout.String()
	stderrStr := stderr.String()
	exitCode := cmd.ProcessState.ExitCode()

	status := store.InvocationCompleted
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		status = store.InvocationTimeout
	case runErr != nil:
		status = store.InvocationFailed
	}

	if err := st.FinishInvocation(ctx, inv.ID, status, &stdoutStr, &stderrStr, &exitCode); err != nil {
		return nil, fmt.Errorf("finish invocation: %w", err)
	}

	if status != store.InvocationCompleted {
		invocationError := stderrStr
		if invocationError == "" {
			invocationError = "Invocation failed with no output"
		}
		return &Result{InvocationError: invocationError}, nil
	}

	response := extractResponse(stdout.Bytes(), messageType)
	if response == "" {
		return &Result{InvocationError: "Invocation failed with no output"}, nil
	}
	return &Result{Response: &response}, nil
}

// buildArgs assembles the array-form argument list for the child process.
// The safety primitives from internal/exec are applied to the executable
// path and every flag/path argument we construct ourselves; the free-form
// prompt is deliberately exempt from the shell-metacharacter/control-char
// check that governs those structural arguments; array-form exec.Command
// never invokes a shell, so a prompt containing ";" or a newline cannot
// cause injection, and rejecting it would break ordinary multi-sentence
// prompts.
func buildArgs(cfg Config, prompt string, messageType store.MessageType, useOutputSchema bool) ([]string, string, error) {
	if !execsafety.IsSafeExecutableValue(cfg.Path) {
		return nil, "", fmt.Errorf("unsafe codex executable path %q", cfg.Path)
	}

	flags := []string{"exec", "--json", "--full-auto", "--skip-git-repo-check"}

	schemaPath := ""
	if useOutputSchema {
		path, err := writeSchemaFile(messageType)
		if err != nil {
			return nil, "", err
		}
		schemaPath = path
		flags = append(flags, "--output-schema", schemaPath)
	}

	sanitizedFlags, err := execsafety.SanitizeArguments(flags)
	if err != nil {
		return nil, schemaPath, fmt.Errorf("unsafe exec flags: %w", err)
	}

	return append(sanitizedFlags, prompt), schemaPath, nil
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
