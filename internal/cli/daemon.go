package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/notemirror/notemirror/internal/engine"
	"github.com/notemirror/notemirror/internal/log"
)

var daemonExample = `
  notemirror daemon`

func newDaemonCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "daemon",
		Short:   "Sync continuously, on a schedule and on local edits",
		Example: daemonExample,
		RunE:    newDaemonRun(app),
	}
}

func newDaemonRun(app *App) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := recordAutoSync(ctx, app); err != nil {
			return err
		}

		runSync := func() {
			err := app.Engine.SyncNow(ctx)
			switch {
			case err == nil:
			case errors.Is(err, engine.ErrSyncInProgress):
				log.Debug("sync already running, skipping\n")
			default:
				log.Errorf("sync failed: %v\n", err)
			}
		}

		c := cron.New()
		if err := c.AddFunc(fmt.Sprintf("@every %dm", app.Config.AutoSyncMinutes), runSync); err != nil {
			return errors.Wrap(err, "scheduling auto sync")
		}
		c.Start()
		defer c.Stop()

		w, err := newWatcher(app.Config.NotesDir)
		if err != nil {
			return errors.Wrap(err, "watching notes directory")
		}
		defer w.Stop()

		log.Infof("syncing %s every %d minutes and on local edits\n", app.Config.NotesDir, app.Config.AutoSyncMinutes)
		runSync()

		for {
			select {
			case <-ctx.Done():
				log.Info("shutting down\n")
				return nil
			case <-w.Changed():
				runSync()
			}
		}
	}
}

// recordAutoSync persists the auto-sync settings so status can report
// them.
func recordAutoSync(ctx context.Context, app *App) error {
	state, err := app.States.LoadState(ctx)
	if err != nil {
		return errors.Wrap(err, "loading sync state")
	}

	state.AutoSyncEnabled = true
	state.AutoSyncInterval = app.Config.AutoSyncMinutes

	if err := app.States.SaveState(ctx, state); err != nil {
		return errors.Wrap(err, "saving sync state")
	}
	return nil
}
