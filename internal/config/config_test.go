package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("KG_URL", "")
	t.Setenv("CODEX_MCP_ENABLED", "")
	t.Setenv("CODEX_PATH", "")
	t.Setenv("CODEX_SANDBOX", "")
	t.Setenv("CODEX_APPROVAL_POLICY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3790 {
		t.Errorf("Port = %d, want 3790", cfg.Port)
	}
	if cfg.KGURL != "http://127.0.0.1:3789" {
		t.Errorf("KGURL = %q", cfg.KGURL)
	}
	if !cfg.CodexMCPEnabled {
		t.Error("CodexMCPEnabled default should be true")
	}
	if cfg.CodexPath != "codex" {
		t.Errorf("CodexPath = %q", cfg.CodexPath)
	}
	if cfg.CodexSandbox != "workspace-read" {
		t.Errorf("CodexSandbox = %q", cfg.CodexSandbox)
	}
	if cfg.CodexApprovalPolicy != "never" {
		t.Errorf("CodexApprovalPolicy = %q", cfg.CodexApprovalPolicy)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("CODEX_MCP_ENABLED", "false")
	t.Setenv("CODEX_PATH", "/usr/local/bin/codex")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d, want 4000", cfg.Port)
	}
	if cfg.CodexMCPEnabled {
		t.Error("CodexMCPEnabled should be false")
	}
	if cfg.CodexPath != "/usr/local/bin/codex" {
		t.Errorf("CodexPath = %q", cfg.CodexPath)
	}
}
