package main

import "github.com/spf13/cobra"

// buildServeCmd creates the "serve" command that starts the bridge.
func buildServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant bridge",
		Long: `Start the assistant bridge's loopback HTTP server.

The server will:
1. Open the SQLite store and run pending migrations
2. Connect the persistent codex MCP peer, if enabled
3. Start the queue processor's drain and sweep loops
4. Serve /mcp, /status, and /health on 127.0.0.1

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	return cmd
}

// buildStatusCmd creates the "status" command, a thin CLI client for a
// running bridge's /status endpoint.
func buildStatusCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sessions on a running bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 3790, "Bridge HTTP port")
	return cmd
}
