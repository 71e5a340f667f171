// Package watcher requests a records reload when the records file changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haukened/localdns/internal/dns/common/log"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 250 * time.Millisecond

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Reloader is satisfied by server.Controller.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher watches the directory holding a records file. The directory is
// watched rather than the file so that editors replacing the file on save
// are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	reloader Reloader
	logger   log.Logger
	ready    chan struct{}
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   log.Logger
}

// newFSWatcher can be mocked in tests.
var newFSWatcher = fsnotify.NewWatcher

// New returns a Watcher for path that calls reloader.Reload.
func New(path string, reloader Reloader, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: opts.Debounce,
		reloader: reloader,
		logger:   log.With(opts.Logger, map[string]any{"component": "watcher"}),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled, returning nil. It returns an error if
// the directory cannot be watched or a reload cannot be requested.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := newFSWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	close(w.ready)
	w.logger.Info(map[string]any{"path": w.path, "debounce": w.debounce.String()}, "Watching records file")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&relevantOps == 0 {
				continue
			}
			w.logger.Debug(map[string]any{"event": ev.Op.String()}, "Records file event")
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(map[string]any{"error": err}, "File watcher error")
		case <-timer.C:
			if err := w.reloader.Reload(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to request reload: %w", err)
			}
			w.logger.Info(map[string]any{"path": w.path}, "Records file changed, reload requested")
		}
	}
}
