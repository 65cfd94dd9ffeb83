package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"beacon/internal/logging"
)

// timeLayout keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists workflow state in a SQLite database.
//
// The connection pool is limited to a single connection, which serializes
// all writes. Create instances with [Open].
type Store struct {
	db  *sql.DB
	log *logrus.Entry
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. The parent directory is created when missing. A nil logger
// discards migration output.
func Open(ctx context.Context, path string, logger *logrus.Entry) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		log: logger.WithField("component", "store"),
		now: time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogCommand writes an audit entry for a command invocation.
func (s *Store) LogCommand(ctx context.Context, command string, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode command args: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO command_logs (command, args, timestamp) VALUES (?, ?, ?)",
		command, string(argsJSON), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to log command: %w", err)
	}
	return nil
}

// RecentLogs returns up to limit audit entries, most recent first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]CommandLog, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, command, args, timestamp FROM command_logs ORDER BY timestamp DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query command logs: %w", err)
	}
	defer rows.Close()

	var logs []CommandLog
	for rows.Next() {
		var entry CommandLog
		var argsJSON, ts string
		if err := rows.Scan(&entry.ID, &entry.Command, &argsJSON, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan command log: %w", err)
		}
		if err := json.Unmarshal([]byte(argsJSON), &entry.Args); err != nil {
			return nil, fmt.Errorf("failed to decode command args: %w", err)
		}
		if entry.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// ClearLogs deletes every audit entry and returns how many were removed.
func (s *Store) ClearLogs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM command_logs")
	if err != nil {
		return 0, fmt.Errorf("failed to clear command logs: %w", err)
	}
	return res.RowsAffected()
}

// CreateRun inserts a new run in the running state and returns its id.
func (s *Store) CreateRun(ctx context.Context, workflowName string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO workflow_runs (workflow_name, started_at, status) VALUES (?, ?, ?)",
		workflowName, formatTime(s.now()), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create workflow run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to create workflow run: %w", err)
	}
	s.log.WithField("run_id", id).WithField("workflow", workflowName).Debug("created run")
	return id, nil
}

// UpdateRunStatus sets a run's status. Completed and failed runs are stamped
// with a completion time; moving a run back to running clears it.
func (s *Store) UpdateRunStatus(ctx context.Context, runID int64, status RunStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	var completedAt any
	if status.IsTerminal() {
		completedAt = formatTime(s.now())
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE workflow_runs SET status = ?, completed_at = ? WHERE id = ?",
		string(status), completedAt, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	s.log.WithField("run_id", runID).WithField("status", status).Debug("updated run status")
	return nil
}

// CreateStageExecution inserts a stage execution for a run and returns its id.
func (s *Store) CreateStageExecution(ctx context.Context, runID int64, stageIndex int, stageTitle string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO stage_executions (workflow_run_id, stage_index, stage_title, started_at) VALUES (?, ?, ?, ?)",
		runID, stageIndex, stageTitle, formatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create stage execution: %w", err)
	}
	return res.LastInsertId()
}

// CompleteStageExecution sets a stage execution's completion time.
func (s *Store) CompleteStageExecution(ctx context.Context, stageID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE stage_executions SET completed_at = ? WHERE id = ?",
		formatTime(s.now()), stageID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete stage execution %d: %w", stageID, err)
	}
	return nil
}

// AddNote stores a note for a run. A nil stageID records a run-level note.
func (s *Store) AddNote(ctx context.Context, runID int64, stageID *int64, content string) (int64, error) {
	var stage sql.NullInt64
	if stageID != nil {
		stage = sql.NullInt64{Int64: *stageID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO notes (workflow_run_id, stage_execution_id, content, created_at) VALUES (?, ?, ?, ?)",
		runID, stage, content, formatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add note: %w", err)
	}
	return res.LastInsertId()
}

// NotesForRun returns every note of a run in creation order.
func (s *Store) NotesForRun(ctx context.Context, runID int64) ([]Note, error) {
	return s.queryNotes(ctx,
		"SELECT id, workflow_run_id, stage_execution_id, content, created_at FROM notes WHERE workflow_run_id = ? ORDER BY created_at ASC, id ASC",
		runID,
	)
}

// NotesForStage returns the notes of one stage execution in creation order.
func (s *Store) NotesForStage(ctx context.Context, stageID int64) ([]Note, error) {
	return s.queryNotes(ctx,
		"SELECT id, workflow_run_id, stage_execution_id, content, created_at FROM notes WHERE stage_execution_id = ? ORDER BY created_at ASC, id ASC",
		stageID,
	)
}

func (s *Store) queryNotes(ctx context.Context, query string, arg int64) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var stage sql.NullInt64
		var created string
		if err := rows.Scan(&n.ID, &n.RunID, &stage, &n.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		if stage.Valid {
			id := stage.Int64
			n.StageID = &id
		}
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// GetRun returns a run by id, or [ErrNotFound].
func (s *Store) GetRun(ctx context.Context, runID int64) (*WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, workflow_name, started_at, completed_at, status FROM workflow_runs WHERE id = ?",
		runID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d: %w", runID, err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, most recently started first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]WorkflowRun, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, workflow_name, started_at, completed_at, status FROM workflow_runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// StageExecutions returns the stage executions of a run ordered by index.
func (s *Store) StageExecutions(ctx context.Context, runID int64) ([]StageExecution, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, workflow_run_id, stage_index, stage_title, started_at, completed_at FROM stage_executions WHERE workflow_run_id = ? ORDER BY stage_index ASC, id ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage executions: %w", err)
	}
	defer rows.Close()

	var stages []StageExecution
	for rows.Next() {
		var st StageExecution
		var started string
		var completed sql.NullString
		if err := rows.Scan(&st.ID, &st.RunID, &st.StageIndex, &st.StageTitle, &started, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan stage execution: %w", err)
		}
		if st.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if st.CompletedAt, err = parseNullTime(completed); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// RunDetails loads a run with each of its stages and their notes.
func (s *Store) RunDetails(ctx context.Context, runID int64) (*RunDetails, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	stages, err := s.StageExecutions(ctx, runID)
	if err != nil {
		return nil, err
	}

	details := &RunDetails{Run: *run}
	for _, st := range stages {
		stageNotes, err := s.NotesForStage(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		details.Stages = append(details.Stages, StageNotes{Stage: st, Notes: stageNotes})
	}
	return details, nil
}

// LatestRunDetails returns the details of the most recently started run, or
// [ErrNotFound] when no run exists.
func (s *Store) LatestRunDetails(ctx context.Context) (*RunDetails, error) {
	runs, err := s.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return s.RunDetails(ctx, runs[0].ID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*WorkflowRun, error) {
	var run WorkflowRun
	var started, status string
	var completed sql.NullString
	if err := row.Scan(&run.ID, &run.WorkflowName, &started, &completed, &status); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if run.CompletedAt, err = parseNullTime(completed); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
