// Package corpuswatch rebuilds the knowledge store when the FAQ corpus file
// changes on disk.
package corpuswatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc reloads the corpus.
type RebuildFunc func(ctx context.Context) error

// Watcher watches the corpus file's directory, since editors often replace a
// file by rename and a watch on the file itself would be lost.
type Watcher struct {
	path     string
	debounce time.Duration
	rebuild  RebuildFunc
	logger   *slog.Logger
}

// New constructs a watcher for path. debounce <= 0 selects DefaultDebounce.
func New(path string, debounce time.Duration, rebuild RebuildFunc, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		rebuild:  rebuild,
		logger:   logger.With("component", "corpuswatch"),
	}
}

// Run blocks until ctx is cancelled. Rebuild failures are logged; the
// previous corpus stays published.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching corpus", "path", w.path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !relevant(event.Op) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("corpus rebuild failed", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("corpus rebuilt", "path", w.path)
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
