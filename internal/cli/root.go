// Package cli implements the beacon command tree with cobra.
//
// Commands share an [App] holding the loaded configuration and the
// collaborators they need. Failures are returned as [ExitError] values so
// that [RunWithConfig] can map them to process exit codes without calling
// os.Exit, which keeps every command testable.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"beacon/internal/claude"
	"beacon/internal/config"
	"beacon/internal/definition"
	"beacon/internal/logging"
	"beacon/internal/output"
	"beacon/internal/store"
	"beacon/internal/workflow"
)

// Store is the persistence used directly by commands.
type Store interface {
	LogCommand(ctx context.Context, command string, args map[string]any) error
	RecentLogs(ctx context.Context, limit int) ([]store.CommandLog, error)
	ClearLogs(ctx context.Context) (int64, error)
	RecentRuns(ctx context.Context, limit int) ([]store.WorkflowRun, error)
	RunDetails(ctx context.Context, runID int64) (*store.RunDetails, error)
	LatestRunDetails(ctx context.Context) (*store.RunDetails, error)
}

// WorkflowLister lists the available workflow names.
type WorkflowLister interface {
	List() ([]string, error)
}

// WorkflowRunner executes workflows and one-off prompts.
// The [workflow.Engine] type implements this interface.
type WorkflowRunner interface {
	Run(ctx context.Context, name string) (*workflow.Result, error)
	RunRaw(ctx context.Context, prompt string) error
}

// App holds the dependencies shared by all commands.
type App struct {
	Config    *config.Config
	Store     Store
	Workflows WorkflowLister
	Runner    WorkflowRunner
	Printer   *output.Printer

	// Stdin is read for interactive workflow selection. Defaults to os.Stdin.
	Stdin io.Reader
}

func (a *App) stdin() io.Reader {
	if a.Stdin != nil {
		return a.Stdin
	}
	return os.Stdin
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "beacon",
		Short: "Run multi-stage Claude workflows",
		Long: `beacon runs workflows defined as YAML files in .beacon/workflows/.

Each workflow is a list of prompt stages sent to Claude one after another.
Notes written by Claude in ` + "```note" + ` blocks are saved and passed to
the stages that follow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if app.Printer != nil {
		rootCmd.SetOut(app.Printer.Writer())
	}

	rootCmd.AddCommand(
		newRunCommand(app),
		newListCommand(app),
		newNotesCommand(app),
		newLogsCommand(app),
		newClearLogsCommand(app),
		newHelloCommand(app),
		newRawCommand(app),
	)

	return rootCmd
}

// ExecuteResult is the outcome of running the command tree.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// Execute loads configuration, runs the command named by os.Args and exits
// the process with the resulting code.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, field := range config.ValidationErrors(err) {
			fmt.Fprintf(os.Stderr, "  - %s\n", field)
		}
		os.Exit(1)
	}

	result := RunWithConfig(cfg)
	os.Exit(result.ExitCode)
}

// RunWithConfig wires the production dependencies for cfg and runs the
// command tree.
func RunWithConfig(cfg *config.Config) ExecuteResult {
	logger := logging.New(cfg.Log.Level, os.Stderr)
	entry := logrus.NewEntry(logger)
	ctx := logging.WithLogger(context.Background(), logging.Component(logger, "cli"))

	st, err := store.Open(ctx, cfg.Database.Path, entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	defer st.Close()

	printer := output.NewPrinter()
	printer.SetColor(cfg.Output.Color)

	repo := definition.NewRepository(definition.ResolveDir("", cfg.Workflows.Dir), entry)
	executor := claude.NewExecutor(claude.ExecutorConfig{
		BinaryPath: cfg.Claude.BinaryPath,
		Model:      cfg.Claude.Model,
		Logger:     logging.Component(logger, "claude"),
	})

	app := &App{
		Config:    cfg,
		Store:     st,
		Workflows: repo,
		Runner:    workflow.NewEngine(st, repo, executor, printer, entry),
		Printer:   printer,
	}

	return run(ctx, NewRootCommand(app))
}

func run(ctx context.Context, cmd *cobra.Command) ExecuteResult {
	if err := cmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// exitCodeFor maps a failure to a process exit code. A Claude exit code is
// passed through; anything else is 1.
func exitCodeFor(err error) int {
	var procErr *claude.ProcessError
	if errors.As(err, &procErr) && procErr.Code > 0 {
		return procErr.Code
	}
	return 1
}
