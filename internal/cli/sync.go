package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var syncExample = `
  notemirror sync`

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Mirror local notes to Google Drive",
		Example: syncExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Engine.SyncNow(cmd.Context()); err != nil {
				return errors.Wrap(err, "syncing")
			}
			return nil
		},
	}
}
