package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"beacon/internal/store"
)

// recentRunsLimit is how many runs notes --list shows.
const recentRunsLimit = 20

func newNotesCommand(app *App) *cobra.Command {
	var (
		runID int64
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Show notes saved by workflow runs",
		Long: `Show the notes Claude wrote during a workflow run, grouped by stage.

Without flags the most recent run is shown.

Examples:
  beacon notes
  beacon notes --run 12
  beacon notes --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if list {
				runs, err := app.Store.RecentRuns(ctx, recentRunsLimit)
				if err != nil {
					return err
				}
				app.Printer.RunList(runs)
				return nil
			}

			var (
				details *store.RunDetails
				err     error
			)
			if cmd.Flags().Changed("run") {
				details, err = app.Store.RunDetails(ctx, runID)
			} else {
				details, err = app.Store.LatestRunDetails(ctx)
			}
			if errors.Is(err, store.ErrNotFound) {
				if cmd.Flags().Changed("run") {
					app.Printer.RunNotFound(runID)
				} else {
					app.Printer.NoRuns()
				}
				return nil
			}
			if err != nil {
				return err
			}

			app.Printer.RunNotes(details)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&runID, "run", "r", 0, "show notes for a specific run ID")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list recent workflow runs")

	return cmd
}
