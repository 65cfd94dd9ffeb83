package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultLogLimit = 10

func newLogsCommand(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent command logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			logs, err := app.Store.RecentLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			app.Printer.CommandLogs(logs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", defaultLogLimit, "number of entries to show")

	return cmd
}

func newClearLogsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-logs",
		Short: "Delete all command logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Store.ClearLogs(cmd.Context())
			if err != nil {
				return err
			}
			app.Printer.LogsCleared(n)
			return nil
		},
	}
}
