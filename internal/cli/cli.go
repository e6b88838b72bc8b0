// Package cli implements the notemirror command line interface.
package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/notemirror/notemirror/internal/auth"
	"github.com/notemirror/notemirror/internal/config"
	"github.com/notemirror/notemirror/internal/engine"
	"github.com/notemirror/notemirror/internal/local"
	"github.com/notemirror/notemirror/internal/log"
	"github.com/notemirror/notemirror/internal/remote/googledrive"
	"github.com/notemirror/notemirror/internal/store"
)

// App carries everything a command needs: the loaded config, the
// directory holding token and state files, and the wired engine.
type App struct {
	Config config.Config
	Dir    string
	Engine *engine.Engine
	States store.StateStore
}

func newApp(ctx context.Context) (*App, error) {
	// A .env file is optional.
	_ = godotenv.Load()

	dir, err := config.DefaultDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	tokens := store.NewFileTokenStore(dir)
	states := store.NewFileStateStore(dir)

	session := auth.NewSession(cfg.OAuth(), tokens)
	if err := session.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "restoring session")
	}

	client := googledrive.NewHTTPClient(ctx, session.TokenSource(ctx))
	remoteStore, err := googledrive.NewStore(ctx, client)
	if err != nil {
		return nil, errors.Wrap(err, "building drive client")
	}

	eng := engine.New(session, remoteStore, local.NewDirScanner(cfg.NotesDir), states)
	eng.RootName = cfg.RootFolderName
	eng.Workers = cfg.UploadWorkers
	eng.Events = consoleEvents()

	return &App{Config: cfg, Dir: dir, Engine: eng, States: states}, nil
}

// consoleEvents prints per-note progress and the session summary. Run
// failures are not printed here; they surface through the command's
// returned error.
func consoleEvents() engine.Events {
	return engine.Events{
		AuthenticationChanged: func(connected bool, account string) {
			log.Debug("authentication changed: connected=%t account=%q\n", connected, account)
		},
		SyncStarted: func() {
			log.Debug("sync session started\n")
		},
		SyncCompleted: func(r engine.Result) {
			log.Successf("sync finished: %d uploaded, %d skipped, %d failed\n", r.Uploaded, r.Skipped, r.Failed)
		},
		SyncFailed: func(err error) {
			log.Debug("sync session failed: %v\n", err)
		},
		NoteUploaded: func(folder, title string, err error) {
			if err != nil {
				log.Errorf("upload %s/%s: %v\n", folder, title, err)
				return
			}
			log.Infof("uploaded %s/%s\n", folder, title)
		},
		NoteDownloaded: func(title string, err error) {
			if err != nil {
				log.Errorf("download %s: %v\n", title, err)
				return
			}
			log.Infof("downloaded %s\n", title)
		},
	}
}

// Run assembles the app and executes the command tree.
func Run(version string) error {
	ctx := context.Background()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}

	root := newRootCmd(version)
	root.AddCommand(
		newConnectCmd(app),
		newSyncCmd(app),
		newPullCmd(app),
		newStatusCmd(app),
		newLogoutCmd(app),
		newReauthCmd(app),
		newDaemonCmd(app),
	)

	return root.ExecuteContext(ctx)
}
