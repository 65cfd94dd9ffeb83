package cli

import (
	"github.com/spf13/cobra"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"list-workflows"},
		Short:   "List available workflows",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := app.Workflows.List()
			if err != nil {
				return err
			}
			app.Printer.WorkflowList(names)
			return nil
		},
	}
}
