package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply on top of
// schemaSQL (schema.go). Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name:  "add media_files.force_delete_eligible index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_media_files_force_delete ON media_files (force_delete_eligible) WHERE force_delete_eligible = true`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_media_files_force_delete')`,
	},
	{
		name:  "add tasks.queue column",
		sql:   `ALTER TABLE tasks ADD COLUMN IF NOT EXISTS queue text NOT NULL DEFAULT ''`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'tasks' AND column_name = 'queue')`,
	},
	{
		name:  "add tasks.parent_task_id for chained/fan-out tasks",
		sql:   `ALTER TABLE tasks ADD COLUMN IF NOT EXISTS parent_task_id text REFERENCES tasks(id)`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'tasks' AND column_name = 'parent_task_id')`,
	},
	{
		name:  "add tasks parent lookup index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks (parent_task_id)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_tasks_parent')`,
	},
	{
		name:  "add speakers.embedding_probe_count for pre-probe kNN guard",
		sql:   `ALTER TABLE speakers ADD COLUMN IF NOT EXISTS embedding_probe_count integer NOT NULL DEFAULT 0`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'speakers' AND column_name = 'embedding_probe_count')`,
	},
}

// Migrate runs all pending schema migrations. For each migration, it
// first checks whether the change is already present. If not, it
// attempts to apply it. If the apply fails (e.g. insufficient
// privileges), the error is returned — the caller should treat this as
// fatal since the application's queries depend on these columns existing.
func (db *DB) Migrate(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return &MigrationError{
				failed:  m,
				pending: pending[applied:],
				err:     err,
			}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

// MigrationError is returned when a migration fails. It includes the SQL
// needed to apply all remaining migrations manually.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n\n", e.failed.name, e.err)
	b.WriteString("Run the following SQL as a database superuser to fix this:\n\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	b.WriteString("\nThen restart controlplaned.")
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
