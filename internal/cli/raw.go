package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRawCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <prompt>",
		Short: "Run an arbitrary prompt",
		Long: `Run an arbitrary prompt directly with Claude.
Nothing is recorded and no notes are extracted.

Example:
  beacon raw "List all Go files in the project"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if err := app.Runner.RunRaw(cmd.Context(), prompt); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return NewExitError(exitCodeFor(err))
			}
			return nil
		},
	}
}
