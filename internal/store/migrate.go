package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one forward/backward schema step, identified by a
// lexicographically sortable id (its filename prefix).
type Migration struct {
	ID     string
	UpSQL  string
	DownSQL string
}

// Migrator applies embedded SQL migrations and tracks progress in a
// schema_migrations table.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// loadMigrations reads migrations/*.up.sql and migrations/*.down.sql out of
// the embedded filesystem and pairs them by id.
func loadMigrations() ([]Migration, error) {
	entries, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(entries)

	migrations := make([]Migration, 0, len(entries))
	for _, upPath := range entries {
		id := strings.TrimSuffix(strings.TrimPrefix(upPath, "migrations/"), ".up.sql")

		upSQL, err := migrationFiles.ReadFile(upPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", upPath, err)
		}

		downPath := "migrations/" + id + ".down.sql"
		downSQL, err := migrationFiles.ReadFile(downPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", downPath, err)
		}

		migrations = append(migrations, Migration{
			ID:      id,
			UpSQL:   string(upSQL),
			DownSQL: string(downSQL),
		})
	}
	return migrations, nil
}

// NewMigrator builds a Migrator for db, loading migrations from the
// embedded filesystem.
func NewMigrator(db *sql.DB) (*Migrator, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	return &Migrator{db: db, migrations: migrations}, nil
}

// EnsureSchema creates the schema_migrations bookkeeping table if absent.
func (m *Migrator) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

// Applied returns the set of migration ids already recorded as applied.
func (m *Migrator) Applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// Up applies every pending migration in order, each inside its own
// transaction, recording progress into schema_migrations as it goes.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.EnsureSchema(ctx); err != nil {
		return err
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if applied[mig.ID] {
			continue
		}

		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", mig.ID, err)
		}

		if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", mig.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (id, applied_at) VALUES (?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))`,
			mig.ID,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", mig.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", mig.ID, err)
		}
	}

	return nil
}

// Status reports each known migration id and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) (map[string]bool, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	status := make(map[string]bool, len(m.migrations))
	for _, mig := range m.migrations {
		status[mig.ID] = applied[mig.ID]
	}
	return status, nil
}
