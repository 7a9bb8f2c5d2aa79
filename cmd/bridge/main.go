// Command assistantbridge runs the loopback MCP message-brokering bridge
// between the claude and codex assistants.
//
// # Basic Usage
//
// Start the bridge:
//
//	assistantbridge serve
//
// Check the running bridge's session status:
//
//	assistantbridge status
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "assistantbridge",
		Short:        "Loopback MCP message bridge between claude and codex",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildStatusCmd(), buildMigrateCmd())
	return rootCmd
}
