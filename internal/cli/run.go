package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"beacon/internal/logging"
	"beacon/internal/workflow"
)

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "run [workflow]",
		Aliases: []string{"new"},
		Short:   "Run a workflow",
		Long: `Run a workflow from the workflows directory.

Each stage's prompt is sent to Claude in order, and notes from earlier
stages are included in later prompts. Without an argument, the available
workflows are listed and one is chosen with the arrow keys.

Example:
  beacon run feature-plan`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			} else {
				selected, err := selectWorkflow(cmd.Context(), app)
				if err != nil {
					return err
				}
				if selected == "" {
					return nil
				}
				name = selected
			}

			result, err := app.Runner.Run(cmd.Context(), name)
			if err != nil {
				var validationErr *workflow.ValidationError
				if !errors.As(err, &validationErr) {
					logging.FromContext(cmd.Context()).WithError(err).WithField("workflow", name).Debug("run failed")
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
				return NewExitError(exitCodeFor(err))
			}
			if result.NotFound {
				return NewExitError(1)
			}
			return nil
		},
	}
}

// selectWorkflow lets the user pick one of the available workflows. It
// returns an empty name when there is nothing to run or the user cancels.
func selectWorkflow(ctx context.Context, app *App) (string, error) {
	names, err := app.Workflows.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		app.Printer.WorkflowList(names)
		return "", nil
	}
	return app.Printer.SelectWorkflow(ctx, app.stdin(), names)
}
