package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notemirror/notemirror/internal/log"
)

var connectExample = `
  notemirror connect
  notemirror connect --code 4/0AbCdEf...`

var connectCodeFlag string

func newConnectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connect",
		Short:   "Link a Google Drive account",
		Example: connectExample,
		RunE:    newConnectRun(app),
	}

	cmd.Flags().StringVar(&connectCodeFlag, "code", "", "authorization code (skips the interactive prompt)")

	return cmd
}

func newConnectRun(app *App) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if app.Config.ClientID == "" || app.Config.ClientSecret == "" {
			return errors.New("missing OAuth client credentials; set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or add them to the config file")
		}

		code := connectCodeFlag
		if code == "" {
			log.Plainf("Open the following URL in a browser and approve access:\n\n")
			log.Plainf("%s\n\n", app.Engine.AuthURL("state-token"))
			log.Plain("Paste the authorization code: ")

			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return errors.Wrap(err, "reading authorization code")
			}
			code = strings.TrimSpace(line)
		}
		if code == "" {
			return errors.New("no authorization code given")
		}

		if err := app.Engine.Connect(cmd.Context(), code); err != nil {
			return errors.Wrap(err, "connecting account")
		}

		if acct := app.Engine.Account(); acct != nil && acct.Email != "" {
			log.Successf("connected as %s\n", acct.Email)
		} else {
			log.Success("connected\n")
		}

		return nil
	}
}
