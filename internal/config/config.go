// Package config loads the bridge's process configuration from the
// environment, following the typed-struct-plus-Load shape used throughout
// the rest of the codebase's config packages.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds every environment-tunable setting the bridge reads at
// startup. There is no file-based configuration: the bridge is a single
// loopback process and the environment is its entire external surface.
type Config struct {
	Port int
	// DBPath is the path to the SQLite database file.
	DBPath string
	// KGURL is the base URL of the optional knowledge-graph sync service.
	KGURL string

	CodexMCPEnabled      bool
	CodexPath            string
	CodexSandbox         string
	CodexApprovalPolicy  string
	CodexBaseInstructions string
}

// Load reads Config from the process environment, applying the defaults
// from the external-interfaces contract.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  envInt("PORT", 3790),
		DBPath:                envString("DB_PATH", defaultDBPath()),
		KGURL:                 envString("KG_URL", "http://127.0.0.1:3789"),
		CodexMCPEnabled:       envBool("CODEX_MCP_ENABLED", true),
		CodexPath:             envString("CODEX_PATH", "codex"),
		CodexSandbox:          envString("CODEX_SANDBOX", "workspace-read"),
		CodexApprovalPolicy:   envString("CODEX_APPROVAL_POLICY", "never"),
		CodexBaseInstructions: envString("CODEX_BASE_INSTRUCTIONS", ""),
	}
	return cfg, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local-data", "store.sqlite")
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
