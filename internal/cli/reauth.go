package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notemirror/notemirror/internal/log"
)

var reauthExample = `
  notemirror reauth`

func newReauthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "reauth",
		Short:   "Force an immediate token refresh",
		Example: reauthExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Engine.ForceReauthenticate(cmd.Context()); err != nil {
				return errors.Wrap(err, "refreshing credentials")
			}

			log.Success("credentials refreshed\n")
			return nil
		},
	}
}
