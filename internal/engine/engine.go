// Package engine drives the note mirror's sync sessions.
//
// A session is one run of a forward-only state machine: ensure the
// remote root folder exists, discover the structure already present,
// create missing folders one at a time, upload changed notes through a
// bounded worker pool, then emit exactly one terminal signal. Note
// uploads are skipped when the remote copy's content hash already
// matches. An authentication failure anywhere short-circuits the run
// and schedules a single automatic re-authentication attempt.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/notemirror/notemirror/internal/auth"
	"github.com/notemirror/notemirror/internal/local"
	"github.com/notemirror/notemirror/internal/remote"
	"github.com/notemirror/notemirror/internal/store"
)

// DefaultRootFolderName is the remote folder everything mirrors under.
const DefaultRootFolderName = "Notes App"

const (
	defaultWorkers     = 4
	defaultReauthDelay = time.Second
)

var (
	// ErrSyncInProgress is returned when SyncNow or Pull is called
	// while another run is active.
	ErrSyncInProgress = errors.New("a sync is already in progress")

	// ErrNotConnected is returned when an operation needs an account
	// and no credentials are stored.
	ErrNotConnected = errors.New("not connected to an account")
)

// Engine coordinates the auth session, the remote store and the local
// snapshot source. One engine serves many runs, but never two at once.
type Engine struct {
	// Events receives the engine's signals. Nil callbacks are skipped.
	Events Events

	// Policy resolves diverged note content during Pull. Defaults to
	// PreferLonger.
	Policy ConflictPolicy

	// RootName overrides DefaultRootFolderName.
	RootName string

	// Workers bounds concurrent note uploads. Defaults to 4.
	Workers int

	// ReauthDelay is the pause before the automatic re-authentication
	// attempt that follows an authentication failure. Defaults to 1s.
	ReauthDelay time.Duration

	session *auth.Session
	remote  remote.Store
	source  local.Source
	states  store.StateStore

	running atomic.Bool
	phase   atomic.Int32
}

// New wires an engine. It takes over the session's AuthChanged callback
// and relays it through Events.AuthenticationChanged with the account
// email attached.
func New(session *auth.Session, remoteStore remote.Store, source local.Source, states store.StateStore) *Engine {
	e := &Engine{
		session: session,
		remote:  remoteStore,
		source:  source,
		states:  states,
	}
	session.AuthChanged = e.relayAuthChanged
	return e
}

func (e *Engine) relayAuthChanged(authenticated bool) {
	account := ""
	if acct := e.session.Account(); acct != nil {
		account = acct.Email
	}
	e.Events.emitAuthChanged(authenticated, account)
}

// Connect exchanges a one-time authorization code for tokens and
// persists them.
func (e *Engine) Connect(ctx context.Context, authCode string) error {
	return e.session.Connect(ctx, authCode)
}

// AuthURL returns the consent URL a user visits to obtain the
// authorization code for Connect.
func (e *Engine) AuthURL(state string) string {
	return e.session.AuthURL(state)
}

// Logout clears stored credentials.
func (e *Engine) Logout(ctx context.Context) error {
	return e.session.Logout(ctx)
}

// ForceReauthenticate forces an immediate token refresh, the same path
// a failed run schedules automatically.
func (e *Engine) ForceReauthenticate(ctx context.Context) error {
	return e.session.ForceRefresh(ctx)
}

// IsAuthenticated reports whether credentials are stored.
func (e *Engine) IsAuthenticated() bool {
	return e.session.IsAuthenticated()
}

// Account returns the connected account, or nil.
func (e *Engine) Account() *auth.Account {
	return e.session.Account()
}

// Phase reports the stage the active run is in, or PhaseIdle between
// runs.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

// SyncNow runs one complete sync session: local snapshot to remote
// store. A second call while a run is active returns
// ErrSyncInProgress.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer func() {
		e.phase.Store(int32(PhaseIdle))
		e.running.Store(false)
	}()

	run := &syncRun{engine: e, cache: NewStructureCache()}
	return run.execute(ctx)
}

// PulledNote is one remote note retrieved by Pull. Content divergences
// against the local copy are already resolved by the engine's conflict
// policy; the caller decides where to write the result.
type PulledNote struct {
	Folder  string
	Title   string
	Content string
}

// Pull downloads every note under the remote root. It shares the run
// guard with SyncNow. A missing root means nothing has been mirrored
// yet and yields an empty result.
func (e *Engine) Pull(ctx context.Context) ([]PulledNote, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.running.Store(false)

	if !e.session.IsAuthenticated() {
		return nil, &remote.AuthError{Op: "pull", Err: ErrNotConnected}
	}

	root, err := e.remote.FindFolder(ctx, e.rootFolderName(), "")
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, e.reauthOnAuthError(fmt.Errorf("unable to find root folder: %w", err))
	}

	snapshot, err := e.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to capture local snapshot: %w", err)
	}
	localContent := make(map[noteKey]string, snapshot.NoteCount())
	for _, f := range snapshot.Folders {
		for _, n := range f.Notes {
			localContent[noteKey{f.Name, n.Title}] = n.Content
		}
	}

	folders, err := e.remote.ListChildFolders(ctx, root.ID)
	if err != nil {
		return nil, e.reauthOnAuthError(fmt.Errorf("unable to list remote folders: %w", err))
	}

	var pulled []PulledNote
	for _, f := range folders {
		notes, err := e.remote.ListChildFiles(ctx, f.ID)
		if err != nil {
			return nil, e.reauthOnAuthError(fmt.Errorf("unable to list notes in %q: %w", f.Name, err))
		}
		for _, n := range notes {
			data, err := e.remote.DownloadNote(ctx, n.ID)
			if err != nil {
				e.Events.emitNoteDownloaded(n.Title, err)
				if remote.IsAuthError(err) {
					return nil, e.reauthOnAuthError(fmt.Errorf("unable to download %q: %w", n.Title, err))
				}
				continue
			}
			content := string(data)
			if localCopy, ok := localContent[noteKey{f.Name, n.Title}]; ok && localCopy != content {
				content = e.conflictPolicy().Resolve(localCopy, content)
			}
			pulled = append(pulled, PulledNote{Folder: f.Name, Title: n.Title, Content: content})
			e.Events.emitNoteDownloaded(n.Title, nil)
		}
	}
	return pulled, nil
}

// scheduleReauth arms the automatic re-authentication attempt that
// follows an authentication failure. The refresh outcome is reported
// through AuthenticationChanged, not returned. With no stored
// credentials there is nothing to refresh with, so nothing is armed.
func (e *Engine) scheduleReauth() {
	if !e.session.IsAuthenticated() {
		return
	}
	time.AfterFunc(e.reauthPause(), func() {
		_ = e.session.ForceRefresh(context.Background())
	})
}

func (e *Engine) reauthOnAuthError(err error) error {
	if remote.IsAuthError(err) {
		e.scheduleReauth()
	}
	return err
}

func (e *Engine) rootFolderName() string {
	if e.RootName != "" {
		return e.RootName
	}
	return DefaultRootFolderName
}

func (e *Engine) uploadWorkers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return defaultWorkers
}

func (e *Engine) reauthPause() time.Duration {
	if e.ReauthDelay > 0 {
		return e.ReauthDelay
	}
	return defaultReauthDelay
}

func (e *Engine) conflictPolicy() ConflictPolicy {
	if e.Policy != nil {
		return e.Policy
	}
	return PreferLonger{}
}
