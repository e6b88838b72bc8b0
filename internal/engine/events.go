package engine

// Result summarizes the note outcomes of one run.
type Result struct {
	Uploaded   int
	Skipped    int
	Downloaded int
	Failed     int
}

// Events carries the engine's signals toward an embedder (CLI, daemon,
// UI shell). Every callback is optional; nil fields are skipped.
// SyncStarted and exactly one of SyncCompleted/SyncFailed fire once per
// run from the run's own goroutine; AuthenticationChanged may fire from
// a worker goroutine when a mid-run refresh fails, so callbacks must be
// safe for concurrent use.
type Events struct {
	AuthenticationChanged func(connected bool, account string)
	SyncStarted           func()
	SyncCompleted         func(res Result)
	SyncFailed            func(err error)
	NoteUploaded          func(folder, title string, err error)
	NoteDownloaded        func(title string, err error)
}

func (ev Events) emitAuthChanged(connected bool, account string) {
	if ev.AuthenticationChanged != nil {
		ev.AuthenticationChanged(connected, account)
	}
}

func (ev Events) emitSyncStarted() {
	if ev.SyncStarted != nil {
		ev.SyncStarted()
	}
}

func (ev Events) emitSyncCompleted(res Result) {
	if ev.SyncCompleted != nil {
		ev.SyncCompleted(res)
	}
}

func (ev Events) emitSyncFailed(err error) {
	if ev.SyncFailed != nil {
		ev.SyncFailed(err)
	}
}

func (ev Events) emitNoteUploaded(folder, title string, err error) {
	if ev.NoteUploaded != nil {
		ev.NoteUploaded(folder, title, err)
	}
}

func (ev Events) emitNoteDownloaded(title string, err error) {
	if ev.NoteDownloaded != nil {
		ev.NoteDownloaded(title, err)
	}
}
