package cli

import (
	"github.com/spf13/cobra"

	"beacon/internal/logging"
)

func newHelloCommand(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "hello",
		Short: "Print a greeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logArgs := map[string]any{"name": nil}
			if name != "" {
				logArgs["name"] = name
			}
			if err := app.Store.LogCommand(cmd.Context(), "hello", logArgs); err != nil {
				logging.FromContext(cmd.Context()).WithError(err).Warn("failed to write command log")
			}

			who := name
			if who == "" {
				who = "World"
			}
			app.Printer.Greeting("Hello, " + who + "!")
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "name to greet")

	return cmd
}
