package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"beacon/internal/claude"
	"beacon/internal/definition"
	"beacon/internal/logging"
	"beacon/internal/notes"
	"beacon/internal/output"
	"beacon/internal/store"
)

// ErrUnsupportedStageType is returned when a stage's type has no executor.
var ErrUnsupportedStageType = errors.New("unsupported stage type")

// ExecutionContext carries run state into a stage execution.
//
// Notes holds every note persisted by earlier stages of the same run, in
// creation order. It is a fresh copy for each stage.
type ExecutionContext struct {
	RunID        int64
	StageID      int64
	Notes        []store.Note
	SystemPrompt string
}

// StageStore is the persistence a stage writes its results to.
type StageStore interface {
	AddNote(ctx context.Context, runID int64, stageID *int64, content string) (int64, error)
	CompleteStageExecution(ctx context.Context, stageID int64) error
}

// StageExecutor runs a single workflow stage.
//
// A nil ExecutionContext runs the stage without persisting anything.
type StageExecutor interface {
	Execute(ctx context.Context, stage definition.Stage, ectx *ExecutionContext) error
}

// StageDeps are the collaborators shared by all stage executors.
type StageDeps struct {
	Claude  claude.Executor
	Store   StageStore
	Printer *output.Printer
	Logger  *logrus.Entry
}

// NewStageExecutor returns the executor for stage's type. An unknown type
// fails with [ErrUnsupportedStageType] before any work is done.
func NewStageExecutor(stage definition.Stage, deps StageDeps) (StageExecutor, error) {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}

	switch stage.Type {
	case definition.StageTypePrompt:
		return &PromptStageExecutor{deps: deps}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStageType, stage.Type)
	}
}

// PromptStageExecutor sends a stage's prompt to Claude, streams the response
// to the printer and stores the notes found in it.
type PromptStageExecutor struct {
	deps StageDeps
}

// Execute runs stage.
//
// Output is displayed as it streams. Once Claude exits successfully the full
// response is scanned for notes, which are stored against the stage before
// the stage is marked complete and the success indicator is printed.
func (e *PromptStageExecutor) Execute(ctx context.Context, stage definition.Stage, ectx *ExecutionContext) error {
	printer := e.deps.Printer
	printer.StageStart(stage.Title)

	var response strings.Builder
	hadOutput := false

	err := e.deps.Claude.ExecutePrompt(ctx, BuildPrompt(stage.Prompt, ectx), claude.Callbacks{
		OnStart: func() {
			if !hadOutput {
				hadOutput = true
				printer.OutputStart()
			}
		},
		OnToken: func(text string) {
			response.WriteString(text)
			printer.Token(text)
		},
		OnError: func(error) {
			printer.StageFailure(stage.Title, hadOutput)
		},
	})
	if err != nil {
		return err
	}

	if ectx != nil {
		if err := e.persist(ctx, ectx, response.String()); err != nil {
			printer.StageFailure(stage.Title, hadOutput)
			return err
		}
	}

	printer.StageSuccess(stage.Title, hadOutput)
	return nil
}

func (e *PromptStageExecutor) persist(ctx context.Context, ectx *ExecutionContext, response string) error {
	found := notes.Extract(response)
	stageID := ectx.StageID
	for _, content := range found {
		if _, err := e.deps.Store.AddNote(ctx, ectx.RunID, &stageID, content); err != nil {
			return fmt.Errorf("failed to save note: %w", err)
		}
	}

	if err := e.deps.Store.CompleteStageExecution(ctx, stageID); err != nil {
		return fmt.Errorf("failed to complete stage: %w", err)
	}

	e.deps.Logger.WithFields(logrus.Fields{
		"run_id":   ectx.RunID,
		"stage_id": stageID,
		"notes":    len(found),
	}).Debug("stage completed")
	return nil
}

// BuildPrompt assembles the text sent to Claude for a stage: the system
// prompt, then notes from earlier stages, then the stage prompt. Without a
// context, or with neither a system prompt nor notes, it is the stage prompt
// unchanged.
func BuildPrompt(prompt string, ectx *ExecutionContext) string {
	if ectx == nil {
		return prompt
	}

	var b strings.Builder
	if ectx.SystemPrompt != "" {
		b.WriteString(ectx.SystemPrompt)
		b.WriteString("\n\n")
	}

	if len(ectx.Notes) > 0 {
		contents := make([]string, len(ectx.Notes))
		for i, n := range ectx.Notes {
			contents[i] = n.Content
		}
		b.WriteString(notes.FormatForContext(contents))
	}

	b.WriteString(prompt)
	return b.String()
}
