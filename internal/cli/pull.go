package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notemirror/notemirror/internal/engine"
	"github.com/notemirror/notemirror/internal/log"
)

var pullExample = `
  notemirror pull`

func newPullCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "pull",
		Short:   "Download remote notes into the local notes folder",
		Example: pullExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := app.Engine.Pull(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "pulling notes")
			}
			if len(notes) == 0 {
				log.Info("nothing to pull\n")
				return nil
			}

			for _, n := range notes {
				if err := writePulledNote(app.Config.NotesDir, n); err != nil {
					return errors.Wrapf(err, "writing %s/%s", n.Folder, n.Title)
				}
			}

			log.Successf("pulled %d notes into %s\n", len(notes), app.Config.NotesDir)
			return nil
		},
	}
}

func writePulledNote(dir string, n engine.PulledNote) error {
	folder := filepath.Join(dir, safeName(n.Folder))
	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(folder, safeName(n.Title)+".md"), []byte(n.Content), 0644)
}

// safeName keeps a remote title usable as a file name.
func safeName(s string) string {
	return strings.ReplaceAll(s, string(os.PathSeparator), "-")
}
