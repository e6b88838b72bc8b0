package cli

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notemirror/notemirror/internal/log"
)

var statusExample = `
  notemirror status`

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the connection and sync state",
		Example: statusExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case !app.Engine.IsAuthenticated():
				log.Info("account: not connected\n")
			default:
				if acct := app.Engine.Account(); acct != nil && acct.Email != "" {
					log.Infof("account: %s\n", acct.Email)
				} else {
					log.Info("account: connected\n")
				}
			}

			log.Infof("notes: %s\n", app.Config.NotesDir)

			state, err := app.States.LoadState(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "loading sync state")
			}

			if state.LastSync.IsZero() {
				log.Info("last sync: never\n")
			} else {
				log.Infof("last sync: %s\n", state.LastSync.Local().Format(time.RFC1123))
			}
			if state.AutoSyncEnabled {
				log.Infof("auto sync: every %d minutes\n", state.AutoSyncInterval)
			}
			if n := len(state.PendingChanges); n > 0 {
				log.Warnf("%d notes pending retry\n", n)
			}

			return nil
		},
	}
}
