package main

import (
	"github.com/spf13/cobra"
)

// buildMigrateCmd creates the "migrate" command group, matching the
// teacher's "nexus migrate" grouping but scoped to this bridge's single
// embedded schema (no workspace-import subcommands apply here).
func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the bridge database schema",
		Long: `Apply or inspect the embedded SQLite schema migrations.

serve already applies every pending migration on startup, so "migrate up"
is only needed to prepare a database ahead of time, and "migrate status"
is a read-only audit of what has been applied.`,
	}

	cmd.AddCommand(buildMigrateUpCmd())
	cmd.AddCommand(buildMigrateStatusCmd())

	return cmd
}

func buildMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd)
		},
	}
}

func buildMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd)
		},
	}
}
