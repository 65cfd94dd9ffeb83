// Package workflow runs multi-stage workflows against Claude.
//
// An [Engine] loads a definition, validates it with [Validate] and executes
// its stages one after another through a [StageExecutor]. Notes extracted
// from each stage's response are stored and handed to every later stage of
// the same run.
//
// Every run is recorded, including runs of unknown or invalid workflows, and
// ends as either completed or failed.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"beacon/internal/claude"
	"beacon/internal/definition"
	"beacon/internal/logging"
	"beacon/internal/output"
	"beacon/internal/store"
)

// Store is the persistence the engine needs.
type Store interface {
	StageStore
	LogCommand(ctx context.Context, command string, args map[string]any) error
	CreateRun(ctx context.Context, workflowName string) (int64, error)
	UpdateRunStatus(ctx context.Context, runID int64, status store.RunStatus) error
	CreateStageExecution(ctx context.Context, runID int64, stageIndex int, stageTitle string) (int64, error)
	NotesForStage(ctx context.Context, stageID int64) ([]store.Note, error)
}

// Source provides workflow definitions by name.
//
// Load returns an error wrapping [definition.ErrNotFound] when no workflow
// of that name exists. Dir names where definitions are read from.
type Source interface {
	Load(name string) (*definition.Definition, error)
	Dir() string
}

// ProgressCallback is invoked before each stage executes.
//
// index is 1-based. ectx is the context the stage will receive.
type ProgressCallback func(index, total int, stage definition.Stage, ectx ExecutionContext)

// Result describes a finished run.
type Result struct {
	RunID  int64
	Status store.RunStatus

	// NotFound is set when no definition exists for the workflow name.
	NotFound bool
}

// Engine executes workflows and records their runs.
type Engine struct {
	store    Store
	source   Source
	claude   claude.Executor
	printer  *output.Printer
	log      *logrus.Entry
	progress ProgressCallback
	now      func() time.Time
}

// NewEngine creates an [Engine]. A nil logger discards log output.
func NewEngine(st Store, source Source, executor claude.Executor, printer *output.Printer, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		store:   st,
		source:  source,
		claude:  executor,
		printer: printer,
		log:     logger.WithField("component", "engine"),
		now:     time.Now,
	}
}

// SetProgressCallback registers cb to be called before each stage.
func (e *Engine) SetProgressCallback(cb ProgressCallback) {
	e.progress = cb
}

func (e *Engine) stageDeps() StageDeps {
	return StageDeps{
		Claude:  e.claude,
		Store:   e.store,
		Printer: e.printer,
		Logger:  e.log.WithField("component", "executor"),
	}
}

// Run executes the named workflow.
//
// A workflow that does not exist is reported on the printer and returns a
// Result with NotFound set and a nil error. An invalid definition returns a
// [*ValidationError]. A stage failure aborts the remaining stages and is
// returned wrapped. The run is marked failed on every failing path before
// Run returns.
func (e *Engine) Run(ctx context.Context, name string) (*Result, error) {
	started := e.now()

	if err := e.store.LogCommand(ctx, "run", map[string]any{"workflow": name}); err != nil {
		e.log.WithError(err).Warn("failed to write command log")
	}

	runID, err := e.store.CreateRun(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow run: %w", err)
	}
	log := e.log.WithFields(logrus.Fields{"run_id": runID, "workflow": name})
	log.Debug("run created")

	failed := &Result{RunID: runID, Status: store.StatusFailed}

	def, err := e.source.Load(name)
	if err != nil {
		e.markFailed(ctx, log, runID)
		if errors.Is(err, definition.ErrNotFound) {
			e.printer.WorkflowNotFound(name, e.source.Dir())
			failed.NotFound = true
			return failed, nil
		}
		return failed, fmt.Errorf("failed to load workflow: %w", err)
	}

	if v := Validate(def); !v.Valid {
		e.markFailed(ctx, log, runID)
		e.printer.ValidationErrors(name, v.Errors)
		return failed, &ValidationError{Workflow: name, Errors: v.Errors}
	}

	if err := e.runStages(ctx, log, runID, def); err != nil {
		e.markFailed(ctx, log, runID)
		return failed, err
	}

	if err := e.store.UpdateRunStatus(ctx, runID, store.StatusCompleted); err != nil {
		e.markFailed(ctx, log, runID)
		return failed, fmt.Errorf("failed to complete workflow run: %w", err)
	}
	log.Debug("run completed")

	e.printer.RunSummary(name, runID, len(def.Stages), e.now().Sub(started))
	return &Result{RunID: runID, Status: store.StatusCompleted}, nil
}

func (e *Engine) runStages(ctx context.Context, log *logrus.Entry, runID int64, def *definition.Definition) error {
	var prior []store.Note
	deps := e.stageDeps()
	total := len(def.Stages)

	for i, stage := range def.Stages {
		executor, err := NewStageExecutor(stage, deps)
		if err != nil {
			return err
		}

		stageID, err := e.store.CreateStageExecution(ctx, runID, i, stage.Title)
		if err != nil {
			return fmt.Errorf("failed to create stage execution: %w", err)
		}
		log.WithFields(logrus.Fields{"stage_id": stageID, "stage": stage.Title}).Debug("stage created")

		ectx := ExecutionContext{
			RunID:        runID,
			StageID:      stageID,
			Notes:        slices.Clone(prior),
			SystemPrompt: def.SystemPrompt,
		}

		if e.progress != nil {
			e.progress(i+1, total, stage, ectx)
		}

		if err := executor.Execute(ctx, stage, &ectx); err != nil {
			return fmt.Errorf("stage %d (%s) failed: %w", i+1, stage.Title, err)
		}

		stageNotes, err := e.store.NotesForStage(ctx, stageID)
		if err != nil {
			return fmt.Errorf("failed to load stage notes: %w", err)
		}
		prior = append(prior, stageNotes...)
	}

	return nil
}

// markFailed records the failed status. It ignores cancellation of ctx so an
// interrupted run is still closed out.
func (e *Engine) markFailed(ctx context.Context, log *logrus.Entry, runID int64) {
	if err := e.store.UpdateRunStatus(context.WithoutCancel(ctx), runID, store.StatusFailed); err != nil {
		log.WithError(err).Error("failed to mark run as failed")
		return
	}
	log.Debug("run failed")
}

// RunRaw sends a single prompt to Claude with the usual stage display and
// no persistence.
func (e *Engine) RunRaw(ctx context.Context, prompt string) error {
	stage := definition.Stage{Title: "raw", Type: definition.StageTypePrompt, Prompt: prompt}
	executor, err := NewStageExecutor(stage, e.stageDeps())
	if err != nil {
		return err
	}
	return executor.Execute(ctx, stage, nil)
}
