package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	name string
	sql  string
}

// migrations are applied in order, each at most once.
var migrations = []migration{
	{
		name: "001_command_logs",
		sql: `
		CREATE TABLE IF NOT EXISTS command_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command TEXT NOT NULL,
			args TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_command_logs_timestamp ON command_logs(timestamp);
		`,
	},
	{
		name: "002_workflow_runs",
		sql: `
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_name TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			status TEXT NOT NULL CHECK (status IN ('running', 'completed', 'failed'))
		);

		CREATE TABLE IF NOT EXISTS stage_executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_run_id INTEGER NOT NULL,
			stage_index INTEGER NOT NULL,
			stage_title TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			FOREIGN KEY (workflow_run_id) REFERENCES workflow_runs(id)
		);

		CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_run_id INTEGER NOT NULL,
			stage_execution_id INTEGER,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (workflow_run_id) REFERENCES workflow_runs(id),
			FOREIGN KEY (stage_execution_id) REFERENCES stage_executions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_stage_executions_run ON stage_executions(workflow_run_id);
		CREATE INDEX IF NOT EXISTS idx_notes_run ON notes(workflow_run_id);
		CREATE INDEX IF NOT EXISTS idx_notes_stage ON notes(stage_execution_id);
		`,
	},
}

// migrate creates the tracking table and applies pending migrations, each in
// its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := s.isApplied(ctx, m.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := s.apply(ctx, m); err != nil {
			return err
		}
		s.log.WithField("migration", m.name).Info("applied migration")
	}

	return nil
}

func (s *Store) isApplied(ctx context.Context, name string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM _migrations WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO _migrations (name, applied_at) VALUES (?, ?)",
		m.name, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.name, err)
	}

	return tx.Commit()
}
