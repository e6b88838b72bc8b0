package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/notemirror/notemirror/internal/auth"
	"github.com/notemirror/notemirror/internal/local"
	"github.com/notemirror/notemirror/internal/model"
	"github.com/notemirror/notemirror/internal/remote"
	"github.com/notemirror/notemirror/internal/remote/memory"
	"github.com/notemirror/notemirror/internal/store"
)

// tokenEndpoint fakes the OAuth token service and counts grants.
type tokenEndpoint struct {
	srv       *httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	t.Helper()
	te := &tokenEndpoint{}
	te.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		switch r.FormValue("grant_type") {
		case "authorization_code":
			te.exchanges.Add(1)
		case "refresh_token":
			te.refreshes.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-fresh",
			"refresh_token": "refresh-fresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(te.srv.Close)
	return te
}

// countingStore wraps the in-memory store with call counters and
// injectable failures.
type countingStore struct {
	inner *memory.Store

	findFolder   atomic.Int32
	createFolder atomic.Int32
	uploads      atomic.Int32
	listFolders  atomic.Int32
	listFiles    atomic.Int32
	downloads    atomic.Int32

	mu           sync.Mutex
	createdNames []string

	uploadErr      func(up remote.UploadRequest) error
	createErr      func(name string) error
	listFoldersErr func(parentID string) error

	// uploadEntered receives once per UploadNote entry; uploadGate,
	// when non-nil, holds UploadNote until closed.
	uploadEntered chan struct{}
	uploadGate    chan struct{}
}

func (s *countingStore) FindFolder(ctx context.Context, name, parentID string) (*remote.FolderRef, error) {
	s.findFolder.Add(1)
	return s.inner.FindFolder(ctx, name, parentID)
}

func (s *countingStore) CreateFolder(ctx context.Context, name, parentID string) (*remote.FolderRef, error) {
	s.createFolder.Add(1)
	s.mu.Lock()
	s.createdNames = append(s.createdNames, name)
	s.mu.Unlock()
	if s.createErr != nil {
		if err := s.createErr(name); err != nil {
			return nil, err
		}
	}
	return s.inner.CreateFolder(ctx, name, parentID)
}

func (s *countingStore) UploadNote(ctx context.Context, up remote.UploadRequest) (*remote.NoteRef, error) {
	s.uploads.Add(1)
	if s.uploadEntered != nil {
		select {
		case s.uploadEntered <- struct{}{}:
		default:
		}
	}
	if s.uploadGate != nil {
		<-s.uploadGate
	}
	if s.uploadErr != nil {
		if err := s.uploadErr(up); err != nil {
			return nil, err
		}
	}
	return s.inner.UploadNote(ctx, up)
}

func (s *countingStore) ListChildFolders(ctx context.Context, parentID string) ([]remote.FolderRef, error) {
	s.listFolders.Add(1)
	if s.listFoldersErr != nil {
		if err := s.listFoldersErr(parentID); err != nil {
			return nil, err
		}
	}
	return s.inner.ListChildFolders(ctx, parentID)
}

func (s *countingStore) ListChildFiles(ctx context.Context, parentID string) ([]remote.NoteRef, error) {
	s.listFiles.Add(1)
	return s.inner.ListChildFiles(ctx, parentID)
}

func (s *countingStore) DownloadNote(ctx context.Context, id string) ([]byte, error) {
	s.downloads.Add(1)
	return s.inner.DownloadNote(ctx, id)
}

func (s *countingStore) DeleteNote(ctx context.Context, id string) error {
	return s.inner.DeleteNote(ctx, id)
}

func (s *countingStore) created() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.createdNames...)
}

// staticSource serves a fixed snapshot.
type staticSource struct {
	snapshot *model.Snapshot
}

func (s staticSource) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return s.snapshot, nil
}

// eventLog records every engine signal.
type eventLog struct {
	mu          sync.Mutex
	started     int
	completed   int
	failed      int
	lastErr     error
	lastRes     Result
	uploadsOK   int
	uploadsErr  int
	downloads   []string
	authChanges []bool
}

func (l *eventLog) events() Events {
	return Events{
		AuthenticationChanged: func(connected bool, account string) {
			l.mu.Lock()
			l.authChanges = append(l.authChanges, connected)
			l.mu.Unlock()
		},
		SyncStarted: func() {
			l.mu.Lock()
			l.started++
			l.mu.Unlock()
		},
		SyncCompleted: func(res Result) {
			l.mu.Lock()
			l.completed++
			l.lastRes = res
			l.mu.Unlock()
		},
		SyncFailed: func(err error) {
			l.mu.Lock()
			l.failed++
			l.lastErr = err
			l.mu.Unlock()
		},
		NoteUploaded: func(folder, title string, err error) {
			l.mu.Lock()
			if err != nil {
				l.uploadsErr++
			} else {
				l.uploadsOK++
			}
			l.mu.Unlock()
		},
		NoteDownloaded: func(title string, err error) {
			l.mu.Lock()
			l.downloads = append(l.downloads, title)
			l.mu.Unlock()
		},
	}
}

func (l *eventLog) authChangeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.authChanges)
}

type fixture struct {
	engine  *Engine
	store   *countingStore
	token   *tokenEndpoint
	states  *store.FileStateStore
	log     *eventLog
	session *auth.Session
}

func newFixture(t *testing.T, snapshot *model.Snapshot) *fixture {
	t.Helper()
	te := newTokenEndpoint(t)
	dir := t.TempDir()
	tokens := store.NewFileTokenStore(dir)

	cfg := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   te.srv.URL + "/auth",
			TokenURL:  te.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	session := auth.NewSession(cfg, tokens)

	seed := &model.Token{
		AccessToken:  "access-seed",
		RefreshToken: "refresh-seed",
		Expiry:       time.Now().Add(time.Hour),
	}
	if err := tokens.Save(context.Background(), seed); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}
	if err := session.Load(context.Background()); err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}

	cs := &countingStore{inner: memory.NewStore()}
	states := store.NewFileStateStore(dir)
	log := &eventLog{}

	e := New(session, cs, staticSource{snapshot: snapshot}, states)
	e.Events = log.events()
	e.ReauthDelay = 5 * time.Millisecond

	return &fixture{engine: e, store: cs, token: te, states: states, log: log, session: session}
}

func snapshotOf(folders ...model.Folder) *model.Snapshot {
	return &model.Snapshot{Folders: folders}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEngine_EndToEnd(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{
			{Title: "Plan", Content: "# Plan\n\nShip the mirror.\n"},
		}},
	))
	ctx := context.Background()

	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if fx.log.started != 1 || fx.log.completed != 1 || fx.log.failed != 0 {
		t.Errorf("Signals started=%d completed=%d failed=%d, want 1/1/0",
			fx.log.started, fx.log.completed, fx.log.failed)
	}
	if fx.log.lastRes != (Result{Uploaded: 1}) {
		t.Errorf("Result = %+v, want 1 upload", fx.log.lastRes)
	}
	if got := fx.store.created(); len(got) != 2 || got[0] != "Notes App" || got[1] != "Work" {
		t.Errorf("Created folders %v, want [Notes App Work]", got)
	}
	if n := fx.store.findFolder.Load(); n != 1 {
		t.Errorf("FindFolder calls = %d, want 1", n)
	}
	if n := fx.store.uploads.Load(); n != 1 {
		t.Errorf("Upload calls = %d, want 1", n)
	}

	root, err := fx.store.inner.FindFolder(ctx, "Notes App", "")
	if err != nil {
		t.Fatalf("Root folder missing: %v", err)
	}
	folders, err := fx.store.inner.ListChildFolders(ctx, root.ID)
	if err != nil || len(folders) != 1 || folders[0].Name != "Work" {
		t.Fatalf("Remote folders = %v (err %v), want [Work]", folders, err)
	}
	notes, err := fx.store.inner.ListChildFiles(ctx, folders[0].ID)
	if err != nil || len(notes) != 1 {
		t.Fatalf("Remote notes = %v (err %v), want one", notes, err)
	}
	if notes[0].Title != "Plan" || notes[0].MD5 != local.ContentHash("# Plan\n\nShip the mirror.\n") {
		t.Errorf("Remote note = %+v, wrong title or checksum", notes[0])
	}

	state, err := fx.states.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if state.RootFolderID != root.ID {
		t.Errorf("Persisted root id = %q, want %q", state.RootFolderID, root.ID)
	}
	if state.LastSync.IsZero() {
		t.Error("LastSync not recorded")
	}
	if len(state.PendingChanges) != 0 {
		t.Errorf("PendingChanges = %v, want none", state.PendingChanges)
	}
}

func TestEngine_TerminalSignalFiresOnce(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{
			{Title: "One", Content: "# One\n\nalpha\n"},
			{Title: "Two", Content: "# Two\n\nbeta\n"},
			{Title: "Three", Content: "# Three\n\ngamma\n"},
		}},
		model.Folder{Name: "Personal", Notes: []model.Note{
			{Title: "Four", Content: "# Four\n\ndelta\n"},
			{Title: "Five", Content: "# Five\n\nepsilon\n"},
			{Title: "Six", Content: "# Six\n\nzeta\n"},
		}},
	))
	fx.engine.Workers = 3

	if err := fx.engine.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if fx.log.completed+fx.log.failed != 1 {
		t.Errorf("Terminal signals = %d, want exactly 1", fx.log.completed+fx.log.failed)
	}
	if fx.log.lastRes.Uploaded != 6 {
		t.Errorf("Uploaded = %d, want 6", fx.log.lastRes.Uploaded)
	}
	if fx.log.uploadsOK != 6 {
		t.Errorf("NoteUploaded signals = %d, want 6", fx.log.uploadsOK)
	}
}

func TestEngine_NoDuplicateFolderCreates(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "A", Notes: []model.Note{{Title: "First", Content: "# First\n\none\n"}}},
		model.Folder{Name: "B", Notes: []model.Note{{Title: "Second", Content: "# Second\n\ntwo\n"}}},
		model.Folder{Name: "A", Notes: []model.Note{{Title: "Third", Content: "# Third\n\nthree\n"}}},
	))
	ctx := context.Background()

	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	creates := 0
	for _, name := range fx.store.created() {
		if name == "A" {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("CreateFolder(A) issued %d times, want 1", creates)
	}

	root, _ := fx.store.inner.FindFolder(ctx, "Notes App", "")
	folders, _ := fx.store.inner.ListChildFolders(ctx, root.ID)
	if len(folders) != 2 {
		t.Errorf("Remote has %d folders, want 2", len(folders))
	}
	if fx.log.lastRes.Uploaded != 3 {
		t.Errorf("Uploaded = %d, want 3", fx.log.lastRes.Uploaded)
	}
}

func TestEngine_HashSkipAcrossSessions(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{
			{Title: "Plan", Content: "# Plan\n\nsteady state\n"},
		}},
	))
	ctx := context.Background()

	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("First sync failed: %v", err)
	}
	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}

	if n := fx.store.uploads.Load(); n != 1 {
		t.Errorf("Upload calls across sessions = %d, want 1", n)
	}
	if fx.log.lastRes != (Result{Skipped: 1}) {
		t.Errorf("Second session result = %+v, want 1 skip", fx.log.lastRes)
	}
	// The second session reuses the persisted root id.
	if n := fx.store.findFolder.Load(); n != 1 {
		t.Errorf("FindFolder calls = %d, want 1", n)
	}
	if fx.log.completed != 2 {
		t.Errorf("Completed signals = %d, want 2", fx.log.completed)
	}
}

func TestEngine_ValidationFailureContinues(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{
			{Title: "Plan", Content: "# Plan\n\ngood content\n"},
			{Title: "Empty", Content: ""},
			{Title: "Echo", Content: "Echo"},
		}},
	))
	ctx := context.Background()

	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if fx.log.completed != 1 || fx.log.failed != 0 {
		t.Errorf("Signals completed=%d failed=%d, want 1/0", fx.log.completed, fx.log.failed)
	}
	if fx.log.lastRes != (Result{Uploaded: 1, Failed: 2}) {
		t.Errorf("Result = %+v, want 1 uploaded 2 failed", fx.log.lastRes)
	}

	state, _ := fx.states.LoadState(ctx)
	if len(state.PendingChanges) != 0 {
		t.Errorf("Validation failures entered the backlog: %v", state.PendingChanges)
	}
}

func TestEngine_AuthShortCircuit(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{
			{Title: "One", Content: "# One\n\na\n"},
			{Title: "Two", Content: "# Two\n\nb\n"},
			{Title: "Three", Content: "# Three\n\nc\n"},
			{Title: "Four", Content: "# Four\n\nd\n"},
		}},
	))
	fx.engine.Workers = 1
	fx.store.uploadErr = func(remote.UploadRequest) error {
		return &remote.AuthError{Op: "request", Err: errors.New("server returned 401 Unauthorized")}
	}

	err := fx.engine.SyncNow(context.Background())
	if !remote.IsAuthError(err) {
		t.Fatalf("Expected auth error, got %v", err)
	}

	if n := fx.store.uploads.Load(); n != 1 {
		t.Errorf("Uploads dispatched after auth failure = %d, want 1", n)
	}
	if fx.log.failed != 1 || fx.log.completed != 0 {
		t.Errorf("Signals failed=%d completed=%d, want 1/0", fx.log.failed, fx.log.completed)
	}

	waitFor(t, func() bool { return fx.token.refreshes.Load() == 1 },
		"Scheduled re-authentication never ran")
	time.Sleep(50 * time.Millisecond)
	if n := fx.token.refreshes.Load(); n != 1 {
		t.Errorf("Re-authentication attempts = %d, want exactly 1", n)
	}

	// The engine stays usable once the failure is resolved.
	fx.store.uploadErr = nil
	if err := fx.engine.SyncNow(context.Background()); err != nil {
		t.Fatalf("Sync after recovery failed: %v", err)
	}
	if fx.log.completed != 1 {
		t.Errorf("Completed signals = %d, want 1", fx.log.completed)
	}
}

func TestEngine_ConcurrentSyncRejected(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{
			{Title: "Plan", Content: "# Plan\n\nheld\n"},
		}},
	))
	fx.store.uploadEntered = make(chan struct{}, 1)
	fx.store.uploadGate = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- fx.engine.SyncNow(context.Background())
	}()

	<-fx.store.uploadEntered

	if err := fx.engine.SyncNow(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("Second SyncNow = %v, want ErrSyncInProgress", err)
	}
	if _, err := fx.engine.Pull(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("Pull during sync = %v, want ErrSyncInProgress", err)
	}

	close(fx.store.uploadGate)
	if err := <-errCh; err != nil {
		t.Fatalf("Held sync failed: %v", err)
	}
	if fx.log.started != 1 {
		t.Errorf("SyncStarted signals = %d, want 1 (rejected call must not start a session)", fx.log.started)
	}
}

func TestEngine_SyncWithoutAccount(t *testing.T) {
	fx := newFixture(t, snapshotOf())
	ctx := context.Background()

	if err := fx.engine.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	err := fx.engine.SyncNow(ctx)
	if !remote.IsAuthError(err) {
		t.Fatalf("Expected auth error, got %v", err)
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected in chain, got %v", err)
	}
	if n := fx.store.findFolder.Load() + fx.store.createFolder.Load() + fx.store.uploads.Load(); n != 0 {
		t.Errorf("Remote calls without credentials = %d, want 0", n)
	}
	if fx.log.failed != 1 {
		t.Errorf("Failed signals = %d, want 1", fx.log.failed)
	}
}

func TestEngine_FolderCreateFailureAdvancesWorklist(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "A", Notes: []model.Note{{Title: "One", Content: "# One\n\na\n"}}},
		model.Folder{Name: "B", Notes: []model.Note{{Title: "Two", Content: "# Two\n\nb\n"}}},
		model.Folder{Name: "C", Notes: []model.Note{{Title: "Three", Content: "# Three\n\nc\n"}}},
	))
	fx.store.createErr = func(name string) error {
		if name == "B" {
			return &remote.APIError{StatusCode: 500, Message: "backend error"}
		}
		return nil
	}
	ctx := context.Background()

	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if fx.log.lastRes != (Result{Uploaded: 2, Failed: 1}) {
		t.Errorf("Result = %+v, want 2 uploaded 1 failed", fx.log.lastRes)
	}
	created := fx.store.created()
	if len(created) != 4 {
		t.Errorf("CreateFolder calls %v, want root plus A, B, C", created)
	}

	root, _ := fx.store.inner.FindFolder(ctx, "Notes App", "")
	folders, _ := fx.store.inner.ListChildFolders(ctx, root.ID)
	if len(folders) != 2 {
		t.Errorf("Remote has %d folders, want A and C", len(folders))
	}
}

func TestEngine_BacklogRetriesFailedUploads(t *testing.T) {
	content := "# Plan\n\nretry me\n"
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{{Title: "Plan", Content: content}}},
	))
	ctx := context.Background()

	fx.store.uploadErr = func(remote.UploadRequest) error {
		return &remote.APIError{StatusCode: 503, Message: "try later"}
	}
	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("First sync failed: %v", err)
	}
	if fx.log.lastRes != (Result{Failed: 1}) {
		t.Errorf("Result = %+v, want 1 failed", fx.log.lastRes)
	}
	state, _ := fx.states.LoadState(ctx)
	if len(state.PendingChanges) != 1 || state.PendingChanges[0].Title != "Plan" {
		t.Fatalf("Backlog = %v, want the failed note", state.PendingChanges)
	}

	fx.store.uploadErr = nil
	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if fx.log.lastRes != (Result{Uploaded: 1}) {
		t.Errorf("Result = %+v, want 1 uploaded", fx.log.lastRes)
	}
	state, _ = fx.states.LoadState(ctx)
	if len(state.PendingChanges) != 0 {
		t.Errorf("Backlog after success = %v, want empty", state.PendingChanges)
	}

	// A pending entry forces the upload through even when the remote
	// checksum already matches.
	state.PendingChanges = []model.PendingChange{{Folder: "Work", Title: "Plan", Timestamp: time.Now()}}
	if err := fx.states.SaveState(ctx, state); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	before := fx.store.uploads.Load()
	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("Forced sync failed: %v", err)
	}
	if fx.store.uploads.Load() != before+1 {
		t.Error("Pending entry did not force an upload on matching hashes")
	}
	if fx.log.lastRes != (Result{Uploaded: 1}) {
		t.Errorf("Result = %+v, want 1 uploaded", fx.log.lastRes)
	}
	state, _ = fx.states.LoadState(ctx)
	if len(state.PendingChanges) != 0 {
		t.Errorf("Backlog after forced upload = %v, want empty", state.PendingChanges)
	}
}

func TestEngine_StaleRootRecovers(t *testing.T) {
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{{Title: "Plan", Content: "# Plan\n\nhi\n"}}},
	))
	ctx := context.Background()

	if err := fx.states.SaveState(ctx, &model.SyncState{RootFolderID: "ghost"}); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	fx.store.listFoldersErr = func(parentID string) error {
		if parentID == "ghost" {
			return remote.ErrNotFound
		}
		return nil
	}

	if err := fx.engine.SyncNow(ctx); err == nil {
		t.Fatal("Expected first sync to fail on the stale root id")
	}
	state, _ := fx.states.LoadState(ctx)
	if state.RootFolderID != "" {
		t.Errorf("Stale root id survived: %q", state.RootFolderID)
	}

	if err := fx.engine.SyncNow(ctx); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if fx.log.completed != 1 {
		t.Errorf("Completed signals = %d, want 1", fx.log.completed)
	}
}

func TestEngine_PullResolvesConflicts(t *testing.T) {
	remoteContent := "# Plan\n\nThe remote copy carries considerably more text.\n"
	fx := newFixture(t, snapshotOf(
		model.Folder{Name: "Work", Notes: []model.Note{
			{Title: "Plan", Content: "# Plan\n"},
		}},
	))
	ctx := context.Background()

	root, err := fx.store.inner.CreateFolder(ctx, "Notes App", "")
	if err != nil {
		t.Fatalf("Seed root failed: %v", err)
	}
	work, err := fx.store.inner.CreateFolder(ctx, "Work", root.ID)
	if err != nil {
		t.Fatalf("Seed folder failed: %v", err)
	}
	for title, content := range map[string]string{
		"Plan":  remoteContent,
		"Extra": "# Extra\n\nremote only\n",
	} {
		if _, err := fx.store.inner.UploadNote(ctx, remote.UploadRequest{
			Title: title, Content: content, ParentID: work.ID,
		}); err != nil {
			t.Fatalf("Seed note failed: %v", err)
		}
	}

	pulled, err := fx.engine.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	got := make(map[string]string, len(pulled))
	for _, p := range pulled {
		if p.Folder != "Work" {
			t.Errorf("Pulled note in folder %q, want Work", p.Folder)
		}
		got[p.Title] = p.Content
	}
	if len(got) != 2 {
		t.Fatalf("Pulled %d notes, want 2", len(got))
	}
	if got["Plan"] != remoteContent {
		t.Errorf("Conflict resolution kept %q, want the longer remote copy", got["Plan"])
	}
	if got["Extra"] != "# Extra\n\nremote only\n" {
		t.Errorf("Remote-only note content = %q", got["Extra"])
	}
	if n := fx.store.downloads.Load(); n != 2 {
		t.Errorf("Downloads = %d, want 2", n)
	}
}

func TestEngine_PullWithoutRoot(t *testing.T) {
	fx := newFixture(t, snapshotOf())

	pulled, err := fx.engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if pulled != nil {
		t.Errorf("Pulled %v from an empty remote, want nothing", pulled)
	}
	if n := fx.store.downloads.Load(); n != 0 {
		t.Errorf("Downloads = %d, want 0", n)
	}
}

func TestEngine_ConnectAndLogoutRelaySignals(t *testing.T) {
	fx := newFixture(t, snapshotOf())
	ctx := context.Background()

	if err := fx.engine.Connect(ctx, "auth-code-1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if n := fx.token.exchanges.Load(); n != 1 {
		t.Errorf("Code exchanges = %d, want 1", n)
	}
	if !fx.engine.IsAuthenticated() {
		t.Error("Expected authenticated after Connect")
	}

	if err := fx.engine.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if fx.engine.IsAuthenticated() {
		t.Error("Expected unauthenticated after Logout")
	}

	fx.log.mu.Lock()
	changes := append([]bool(nil), fx.log.authChanges...)
	fx.log.mu.Unlock()
	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("AuthenticationChanged sequence = %v, want [true false]", changes)
	}
}

func TestEngine_ForceReauthenticateRefreshes(t *testing.T) {
	fx := newFixture(t, snapshotOf())

	if err := fx.engine.ForceReauthenticate(context.Background()); err != nil {
		t.Fatalf("ForceReauthenticate failed: %v", err)
	}
	if n := fx.token.refreshes.Load(); n != 1 {
		t.Errorf("Refresh calls = %d, want 1", n)
	}
	if n := fx.log.authChangeCount(); n != 0 {
		t.Errorf("AuthenticationChanged fired %d times on a successful refresh, want 0", n)
	}
}
