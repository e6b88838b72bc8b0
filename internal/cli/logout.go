package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notemirror/notemirror/internal/log"
)

var logoutExample = `
  notemirror logout`

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "Clear the stored Google Drive credentials",
		Example: logoutExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Engine.IsAuthenticated() {
				log.Info("not connected\n")
				return nil
			}

			if err := app.Engine.Logout(cmd.Context()); err != nil {
				return errors.Wrap(err, "logging out")
			}

			log.Success("signed out\n")
			return nil
		},
	}
}
