package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/mediatypes"
	"github.com/knsan189/imageLabeler/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a path must stay quiet before it is emitted.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports images created or written under a directory tree.
type Watcher struct {
	root     string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	watched int
}

// NewWatcher creates a Watcher for root. debounce <= 0 uses DefaultDebounce.
func NewWatcher(root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Watched returns the number of directories being watched.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watched
}

// Run watches root until ctx ends, calling emit once per image path after
// its events settle. emit may be called from several goroutines.
func (w *Watcher) Run(ctx context.Context, emit func(path string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	count := w.addDirectories(fw, w.root)
	logging.Info("Watching %s (%d directories)", w.root, count)

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event, emit)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// addDirectories adds dir and every non-hidden directory below it.
func (w *Watcher) addDirectories(fw *fsnotify.Watcher, dir string) int {
	added := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if addErr := fw.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
		} else {
			added++
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk directory for watcher: %v", err)
		metrics.WatcherErrors.Inc()
	}

	w.mu.Lock()
	w.watched += added
	metrics.WatchedDirectories.Set(float64(w.watched))
	w.mu.Unlock()
	return added
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event, emit func(string)) {
	if isHidden(filepath.Base(event.Name)) {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.addDirectories(fw, event.Name)
			logging.Debug("Added new directory to watcher: %s", event.Name)
			// Files may have landed before the watch was in place.
			paths, err := Scan(ctx, event.Name)
			if err != nil {
				logging.Warn("failed to scan new directory %s: %v", event.Name, err)
				return
			}
			for _, p := range paths {
				w.schedule(ctx, p, emit)
			}
			return
		}
		if mediatypes.IsSupportedImage(event.Name) {
			w.schedule(ctx, event.Name, emit)
		}

	case event.Op&fsnotify.Write != 0:
		if mediatypes.IsSupportedImage(event.Name) {
			w.schedule(ctx, event.Name, emit)
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancel(event.Name)
	}
}

// schedule emits path once no further events arrive for the debounce period.
func (w *Watcher) schedule(ctx context.Context, path string, emit func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() == nil {
			emit(path)
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// eventType returns the metric label for an fsnotify operation.
func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
