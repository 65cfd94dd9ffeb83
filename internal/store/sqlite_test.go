package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "beacon.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeClock returns a clock that advances one second per call.
func fakeClock() func() time.Time {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
}

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "beacon.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening must not re-apply or fail on existing tables.
	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "release")
	require.NoError(t, err)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "release", run.WorkflowName)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, s.UpdateRunStatus(ctx, runID, StatusCompleted))

	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.False(t, run.CompletedAt.Before(run.StartedAt))
}

func TestUpdateRunStatus_RunningClearsCompletion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "release")
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, runID, StatusFailed))

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run.CompletedAt)

	require.NoError(t, s.UpdateRunStatus(ctx, runID, StatusRunning))

	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)
}

func TestUpdateRunStatus_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.UpdateRunStatus(ctx, 999, StatusFailed)
	assert.True(t, errors.Is(err, ErrNotFound))

	runID, err := s.CreateRun(ctx, "wf")
	require.NoError(t, err)
	err = s.UpdateRunStatus(ctx, runID, RunStatus("bogus"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRun(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStageExecutions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "wf")
	require.NoError(t, err)

	first, err := s.CreateStageExecution(ctx, runID, 0, "Plan")
	require.NoError(t, err)
	second, err := s.CreateStageExecution(ctx, runID, 1, "Build")
	require.NoError(t, err)

	require.NoError(t, s.CompleteStageExecution(ctx, first))

	stages, err := s.StageExecutions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, stages, 2)

	assert.Equal(t, first, stages[0].ID)
	assert.Equal(t, 0, stages[0].StageIndex)
	assert.Equal(t, "Plan", stages[0].StageTitle)
	assert.NotNil(t, stages[0].CompletedAt)

	assert.Equal(t, second, stages[1].ID)
	assert.Equal(t, "Build", stages[1].StageTitle)
	assert.Nil(t, stages[1].CompletedAt)
}

func TestNotes_OrderAndScope(t *testing.T) {
	s := openTestStore(t)
	s.now = fakeClock()
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "wf")
	require.NoError(t, err)
	stageA, err := s.CreateStageExecution(ctx, runID, 0, "A")
	require.NoError(t, err)
	stageB, err := s.CreateStageExecution(ctx, runID, 1, "B")
	require.NoError(t, err)

	_, err = s.AddNote(ctx, runID, &stageA, "a1")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, runID, &stageA, "a2")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, runID, nil, "run-level")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, runID, &stageB, "b1\nmulti-line")
	require.NoError(t, err)

	forA, err := s.NotesForStage(ctx, stageA)
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, "a1", forA[0].Content)
	assert.Equal(t, "a2", forA[1].Content)
	require.NotNil(t, forA[0].StageID)
	assert.Equal(t, stageA, *forA[0].StageID)
	assert.Equal(t, runID, forA[0].RunID)

	all, err := s.NotesForRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"a1", "a2", "run-level", "b1\nmulti-line"},
		[]string{all[0].Content, all[1].Content, all[2].Content, all[3].Content})
	assert.Nil(t, all[2].StageID)
	assert.True(t, all[0].CreatedAt.Before(all[3].CreatedAt))
}

func TestNotes_SameTimestampKeepsInsertOrder(t *testing.T) {
	s := openTestStore(t)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "wf")
	require.NoError(t, err)
	stage, err := s.CreateStageExecution(ctx, runID, 0, "A")
	require.NoError(t, err)

	for _, c := range []string{"one", "two", "three"} {
		_, err := s.AddNote(ctx, runID, &stage, c)
		require.NoError(t, err)
	}

	got, err := s.NotesForStage(ctx, stage)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, "three", got[2].Content)
}

func TestRecentRuns_MostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	s.now = fakeClock()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := s.CreateRun(ctx, name)
		require.NoError(t, err)
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].WorkflowName)
	assert.Equal(t, "second", runs[1].WorkflowName)
}

func TestRunDetails(t *testing.T) {
	s := openTestStore(t)
	s.now = fakeClock()
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "wf")
	require.NoError(t, err)
	stageA, err := s.CreateStageExecution(ctx, runID, 0, "A")
	require.NoError(t, err)
	_, err = s.CreateStageExecution(ctx, runID, 1, "B")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, runID, &stageA, "hello")
	require.NoError(t, err)

	details, err := s.RunDetails(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, details.Run.ID)
	require.Len(t, details.Stages, 2)
	assert.Equal(t, "A", details.Stages[0].Stage.StageTitle)
	require.Len(t, details.Stages[0].Notes, 1)
	assert.Equal(t, "hello", details.Stages[0].Notes[0].Content)
	assert.Empty(t, details.Stages[1].Notes)
	assert.Equal(t, 1, details.NoteCount())

	latest, err := s.LatestRunDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, latest.Run.ID)
}

func TestLatestRunDetails_Empty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestRunDetails(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommandLogs(t *testing.T) {
	s := openTestStore(t)
	s.now = fakeClock()
	ctx := context.Background()

	require.NoError(t, s.LogCommand(ctx, "hello", map[string]any{"name": "Ada"}))
	require.NoError(t, s.LogCommand(ctx, "run", map[string]any{"workflow": "release"}))
	require.NoError(t, s.LogCommand(ctx, "hello", nil))

	all, err := s.RecentLogs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	logs, err := s.RecentLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "hello", logs[0].Command)
	assert.Empty(t, logs[0].Args)
	assert.Equal(t, "run", logs[1].Command)
	assert.Equal(t, "release", logs[1].Args["workflow"])

	cleared, err := s.ClearLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleared)

	cleared, err = s.ClearLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cleared)
}

func TestRunStatus(t *testing.T) {
	assert.True(t, StatusRunning.IsValid())
	assert.True(t, StatusCompleted.IsValid())
	assert.True(t, StatusFailed.IsValid())
	assert.False(t, RunStatus("paused").IsValid())

	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}
