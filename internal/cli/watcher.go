package cli

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/notemirror/notemirror/internal/log"
)

const watchDebounce = 2 * time.Second

// watcher coalesces filesystem events under the notes directory into a
// single changed signal after a quiet period. A sync session re-reads
// the whole tree anyway, so per-file granularity buys nothing.
type watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	changed chan struct{}
	stopped chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

func newWatcher(root string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &watcher{
		root:    root,
		fsw:     fsw,
		changed: make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}

	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	// Snapshots read one folder level, so watch just the immediate
	// subdirectories.
	entries, err := os.ReadDir(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := fsw.Add(filepath.Join(root, entry.Name())); err != nil {
			log.Debug("unable to watch %s: %v\n", entry.Name(), err)
		}
	}

	go w.loop()
	return w, nil
}

// Changed signals after local edits settle.
func (w *watcher) Changed() <-chan struct{} {
	return w.changed
}

func (w *watcher) Stop() {
	w.fsw.Close()
	<-w.stopped

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *watcher) loop() {
	defer close(w.stopped)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Debug("watch error: %v\n", err)
		}
	}
}

func (w *watcher) handle(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	// A new folder needs its own watch. It also counts as a change,
	// since empty folders mirror too.
	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				log.Debug("unable to watch new folder %s: %v\n", event.Name, err)
			}
			w.bump()
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.bump()
}

// bump restarts the quiet-period timer.
func (w *watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, func() {
		select {
		case w.changed <- struct{}{}:
		default:
		}
	})
}
