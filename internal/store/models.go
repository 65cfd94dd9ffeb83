// Package store persists workflow runs, stage executions, notes and the
// command audit log in SQLite.
//
// The [Store] is the only writer of persisted state. Identities are SQLite
// row ids assigned at insert time. Notes are returned in creation order;
// run listings are returned most recent first.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus represents the lifecycle state of a [WorkflowRun].
type RunStatus string

// Run status values.
const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// IsValid reports whether s is a recognized run status.
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is a final status a run cannot leave.
func (s RunStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// WorkflowRun is one execution of a workflow definition.
type WorkflowRun struct {
	ID           int64
	WorkflowName string
	StartedAt    time.Time
	CompletedAt  *time.Time
	Status       RunStatus
}

// StageExecution records one stage of a run. CompletedAt is only set once the
// stage's output has been processed successfully.
type StageExecution struct {
	ID          int64
	RunID       int64
	StageIndex  int
	StageTitle  string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Note is a snippet extracted from a stage's output. StageID is nil for
// run-level notes.
type Note struct {
	ID        int64
	RunID     int64
	StageID   *int64
	Content   string
	CreatedAt time.Time
}

// CommandLog is an audit entry for one CLI command invocation.
type CommandLog struct {
	ID        int64
	Command   string
	Args      map[string]any
	Timestamp time.Time
}

// StageNotes pairs a stage execution with the notes it produced.
type StageNotes struct {
	Stage StageExecution
	Notes []Note
}

// RunDetails is a run together with its stages and their notes.
type RunDetails struct {
	Run    WorkflowRun
	Stages []StageNotes
}

// NoteCount returns the total number of notes across all stages.
func (d *RunDetails) NoteCount() int {
	n := 0
	for _, s := range d.Stages {
		n += len(s.Notes)
	}
	return n
}
