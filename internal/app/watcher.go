package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spoolworks/crashship/internal/domain"
	"github.com/spoolworks/crashship/internal/ports"
)

// SpoolWatcher signals the agent loop when a new crash artifact lands in
// the pending directory, so fresh crashes are picked up ahead of the poll
// interval.
type SpoolWatcher struct {
	dir    string
	logger ports.Logger
	events chan struct{}

	mu       sync.Mutex
	debounce *time.Timer
}

// NewSpoolWatcher creates a watcher for the given pending directory.
func NewSpoolWatcher(dir string, logger ports.Logger) *SpoolWatcher {
	return &SpoolWatcher{
		dir:    dir,
		logger: logger,
		events: make(chan struct{}, 1),
	}
}

// Events returns the channel signaled after each debounced arrival.
func (w *SpoolWatcher) Events() <-chan struct{} {
	return w.events
}

// Run watches the pending directory until the context is canceled.
// When the directory cannot be watched the agent falls back to polling,
// so failures here are logged, not fatal.
func (w *SpoolWatcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("spool watcher: create failed, relying on polling", ports.Err(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		w.logger.Warn("spool watcher: watch failed, relying on polling",
			ports.Err(err), ports.String("dir", w.dir))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, _, _, err := domain.ParsePendingName(filepath.Base(event.Name)); err != nil {
				continue
			}
			// Crashing processes write the artifact in several syscalls;
			// debounce so one crash yields one wakeup.
			w.signalAfter(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("spool watcher: error", ports.Err(err))
		}
	}
}

func (w *SpoolWatcher) signalAfter(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}

	w.debounce = time.AfterFunc(delay, func() {
		select {
		case w.events <- struct{}{}:
		default:
		}
	})
}
