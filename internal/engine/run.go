package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/notemirror/notemirror/internal/local"
	"github.com/notemirror/notemirror/internal/model"
	"github.com/notemirror/notemirror/internal/remote"
)

// Phase names the stage a sync run is in. A run only moves forward
// through the phases; Completed and Failed are terminal.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseEnsuringRoot
	PhaseDiscoveringStructure
	PhaseCreatingFolders
	PhaseUploadingNotes
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEnsuringRoot:
		return "ensuring root"
	case PhaseDiscoveringStructure:
		return "discovering structure"
	case PhaseCreatingFolders:
		return "creating folders"
	case PhaseUploadingNotes:
		return "uploading notes"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// errRunAborted marks an upload job that was never dispatched because
// the run hit an authentication failure first.
var errRunAborted = errors.New("run aborted")

// syncRun holds the state for one sync session. Every SyncNow call
// builds a fresh run, so no structure data survives between sessions.
type syncRun struct {
	engine   *Engine
	cache    *StructureCache
	snapshot *model.Snapshot
	state    *model.SyncState

	rootID         string
	usedCachedRoot bool

	result            Result
	completionEmitted bool
	reauthScheduled   bool
	backlog           []model.PendingChange
	forced            map[noteKey]bool

	// aborted stops workers from dispatching further uploads once an
	// authentication failure has been observed.
	aborted atomic.Bool
}

type uploadJob struct {
	folder   string
	folderID string
	noteID   string
	note     model.Note
	hash     string
}

type uploadResult struct {
	job uploadJob
	ref *remote.NoteRef
	err error
}

func (r *syncRun) execute(ctx context.Context) error {
	r.engine.Events.emitSyncStarted()

	if err := r.prepare(ctx); err != nil {
		return r.fail(err)
	}
	if err := r.ensureRoot(ctx); err != nil {
		return r.fail(err)
	}
	if err := r.discoverStructure(ctx); err != nil {
		if r.usedCachedRoot && errors.Is(err, remote.ErrNotFound) {
			// The root id cached from an earlier session no longer
			// resolves. Drop it so the next run re-finds the folder
			// instead of failing forever.
			r.clearCachedRoot(ctx)
		}
		return r.fail(err)
	}
	if err := r.createFolders(ctx); err != nil {
		return r.fail(err)
	}
	if err := r.uploadNotes(ctx); err != nil {
		return r.fail(err)
	}
	if err := r.persistState(ctx); err != nil {
		return r.fail(err)
	}
	r.complete()
	return nil
}

// prepare loads persisted state and captures the local snapshot the
// whole session works from.
func (r *syncRun) prepare(ctx context.Context) error {
	if !r.engine.session.IsAuthenticated() {
		return &remote.AuthError{Op: "sync", Err: ErrNotConnected}
	}

	state, err := r.engine.states.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("unable to load sync state: %w", err)
	}
	r.state = state
	r.forced = make(map[noteKey]bool, len(state.PendingChanges))
	for _, pc := range state.PendingChanges {
		r.forced[noteKey{pc.Folder, pc.Title}] = true
	}

	snapshot, err := r.engine.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("unable to capture local snapshot: %w", err)
	}
	r.snapshot = snapshot
	return nil
}

// ensureRoot resolves the remote root folder, creating it on first use.
// A root id cached in the sync state skips the network round trip.
func (r *syncRun) ensureRoot(ctx context.Context) error {
	r.setPhase(PhaseEnsuringRoot)

	if r.state.RootFolderID != "" {
		r.rootID = r.state.RootFolderID
		r.usedCachedRoot = true
		return nil
	}

	name := r.engine.rootFolderName()
	folder, err := r.engine.remote.FindFolder(ctx, name, "")
	if errors.Is(err, remote.ErrNotFound) {
		folder, err = r.engine.remote.CreateFolder(ctx, name, "")
	}
	if err != nil {
		return fmt.Errorf("unable to ensure root folder %q: %w", name, err)
	}
	r.rootID = folder.ID
	r.state.RootFolderID = folder.ID
	return nil
}

// discoverStructure learns which folders and notes already exist under
// the root before any writes are issued.
func (r *syncRun) discoverStructure(ctx context.Context) error {
	r.setPhase(PhaseDiscoveringStructure)

	folders, err := r.engine.remote.ListChildFolders(ctx, r.rootID)
	if err != nil {
		return fmt.Errorf("unable to list remote folders: %w", err)
	}
	for _, f := range folders {
		r.cache.PutFolder(f.Name, f.ID)
		notes, err := r.engine.remote.ListChildFiles(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("unable to list notes in %q: %w", f.Name, err)
		}
		for _, n := range notes {
			r.cache.PutNote(f.Name, n.Title, n.ID, n.MD5)
		}
	}
	return nil
}

// createFolders works through the snapshot's folder names strictly one
// at a time. The remote store has no create-if-missing primitive, so
// concurrent creates under the same parent would race and produce
// duplicates. Creation failures advance the worklist; only an
// authentication failure aborts the pass.
func (r *syncRun) createFolders(ctx context.Context) error {
	r.setPhase(PhaseCreatingFolders)

	queue := make([]string, 0, len(r.snapshot.Folders))
	for _, f := range r.snapshot.Folders {
		queue = append(queue, f.Name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := r.cache.FolderID(name); ok {
			continue
		}
		folder, err := r.engine.remote.CreateFolder(ctx, name, r.rootID)
		if err != nil {
			if remote.IsAuthError(err) {
				return fmt.Errorf("unable to create folder %q: %w", name, err)
			}
			continue
		}
		r.cache.PutFolder(name, folder.ID)
	}
	return nil
}

// uploadNotes dispatches changed notes through a bounded worker pool
// and collects every outcome before deciding the run's fate.
func (r *syncRun) uploadNotes(ctx context.Context) error {
	r.setPhase(PhaseUploadingNotes)

	jobs := r.buildUploadJobs()
	if len(jobs) == 0 {
		return nil
	}

	workers := r.engine.uploadWorkers()
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan uploadJob, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	resultCh := make(chan uploadResult, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.uploadWorker(ctx, jobCh, resultCh)
		}()
	}

	var authErr error
	for i := 0; i < len(jobs); i++ {
		r.collect(<-resultCh, &authErr)
	}
	wg.Wait()
	return authErr
}

// buildUploadJobs walks the snapshot and decides, per note, between
// skip (hash unchanged), create (no cached id) and update (cached id).
// Notes recorded as pending from an earlier failed upload are forced
// through even when their hashes match.
func (r *syncRun) buildUploadJobs() []uploadJob {
	var jobs []uploadJob
	for _, folder := range r.snapshot.Folders {
		folderID, ok := r.cache.FolderID(folder.Name)
		if !ok {
			// Folder creation failed earlier in the run. The notes
			// count as failures and a later session picks them up.
			r.result.Failed += len(folder.Notes)
			continue
		}
		for _, note := range folder.Notes {
			hash := local.ContentHash(note.Content)
			id, cachedHash, known := r.cache.Note(folder.Name, note.Title)
			if known && !r.forced[noteKey{folder.Name, note.Title}] && !HasDiverged(hash, cachedHash) {
				r.result.Skipped++
				continue
			}
			jobs = append(jobs, uploadJob{
				folder:   folder.Name,
				folderID: folderID,
				noteID:   id,
				note:     note,
				hash:     hash,
			})
		}
	}
	return jobs
}

func (r *syncRun) uploadWorker(ctx context.Context, jobs <-chan uploadJob, results chan<- uploadResult) {
	for job := range jobs {
		if r.aborted.Load() {
			results <- uploadResult{job: job, err: errRunAborted}
			continue
		}
		ref, err := r.engine.remote.UploadNote(ctx, remote.UploadRequest{
			NoteID:   job.noteID,
			Title:    job.note.Title,
			Content:  job.note.Content,
			ParentID: job.folderID,
		})
		if err != nil && remote.IsAuthError(err) {
			r.aborted.Store(true)
		}
		results <- uploadResult{job: job, ref: ref, err: err}
	}
}

// collect applies one upload outcome to the cache, the counters and
// the retry backlog. It runs on the session goroutine only.
func (r *syncRun) collect(res uploadResult, authErr *error) {
	switch {
	case res.err == nil:
		r.result.Uploaded++
		r.cache.PutNote(res.job.folder, res.job.note.Title, res.ref.ID, res.job.hash)
		r.engine.Events.emitNoteUploaded(res.job.folder, res.job.note.Title, nil)
	case errors.Is(res.err, errRunAborted):
		// Never dispatched; the next session retries it naturally.
	case remote.IsAuthError(res.err):
		if *authErr == nil {
			*authErr = fmt.Errorf("unable to upload %q: %w", res.job.note.Title, res.err)
		}
		r.result.Failed++
		r.engine.Events.emitNoteUploaded(res.job.folder, res.job.note.Title, res.err)
	case remote.IsValidationError(res.err):
		// Bad content fails every session the same way, so it is not
		// worth a retry entry.
		r.result.Failed++
		r.engine.Events.emitNoteUploaded(res.job.folder, res.job.note.Title, res.err)
	default:
		r.result.Failed++
		r.backlog = append(r.backlog, model.PendingChange{
			Folder:    res.job.folder,
			Title:     res.job.note.Title,
			Timestamp: time.Now(),
		})
		r.engine.Events.emitNoteUploaded(res.job.folder, res.job.note.Title, res.err)
	}
}

// persistState records the completed run: sync time, resolved root id
// and the retry backlog for notes that failed this time.
func (r *syncRun) persistState(ctx context.Context) error {
	r.state.LastSync = time.Now()
	r.state.PendingChanges = r.backlog
	if err := r.engine.states.SaveState(ctx, r.state); err != nil {
		return fmt.Errorf("unable to persist sync state: %w", err)
	}
	return nil
}

// clearCachedRoot drops only the persisted root folder id, leaving the
// rest of the state untouched.
func (r *syncRun) clearCachedRoot(ctx context.Context) {
	r.state.RootFolderID = ""
	if err := r.engine.states.SaveState(ctx, r.state); err != nil {
		// The stale id stays on disk; the next run hits the same miss
		// and tries again.
		return
	}
}

// complete emits the one-time success signal.
func (r *syncRun) complete() {
	if r.completionEmitted {
		return
	}
	r.completionEmitted = true
	r.setPhase(PhaseCompleted)
	r.engine.Events.emitSyncCompleted(r.result)
}

// fail emits the one-time failure signal. Authentication failures also
// schedule a single automatic re-authentication attempt.
func (r *syncRun) fail(err error) error {
	if remote.IsAuthError(err) && !r.reauthScheduled {
		r.reauthScheduled = true
		r.engine.scheduleReauth()
	}
	if !r.completionEmitted {
		r.completionEmitted = true
		r.setPhase(PhaseFailed)
		r.engine.Events.emitSyncFailed(err)
	}
	return err
}

func (r *syncRun) setPhase(p Phase) {
	r.engine.phase.Store(int32(p))
}
