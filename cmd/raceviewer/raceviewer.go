package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/josevnz/dashkit/cmd/raceviewer/metrics"
	"github.com/josevnz/dashkit/cmd/raceviewer/router"
	"github.com/josevnz/dashkit/pkg/session"
)

// Watcher reloads a race results file into the default session whenever the
// file changes on disk. It watches the containing directory rather than the
// file itself so editors that replace the file (write to temp, rename over)
// keep being picked up.
type Watcher struct {
	Path    string
	Store   session.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// debounce collapses bursts of write events into one reload.
	debounce time.Duration
}

// NewWatcher creates a watcher for the given file path.
func NewWatcher(path string, store session.Store, m *metrics.Metrics, logger *slog.Logger) *Watcher {
	return &Watcher{
		Path:     path,
		Store:    store,
		Logger:   logger,
		Metrics:  m,
		debounce: 250 * time.Millisecond,
	}
}

// LoadOnce reads the file and replaces the default session state. Used at
// startup and after every change event.
func (w *Watcher) LoadOnce(ctx context.Context, source string) error {
	start := time.Now()
	data, err := os.ReadFile(w.Path)
	if err != nil {
		return err
	}

	st, races, err := router.BuildState(filepath.Base(w.Path), data)
	if err != nil {
		return err
	}
	if err := w.Store.Put(ctx, router.DefaultSession, st); err != nil {
		return err
	}

	w.Metrics.RecordLoad(source, time.Since(start).Seconds())
	w.Logger.Info("race data loaded from file",
		"path", w.Path,
		"races", races,
		"distances", len(st.Distances),
	)
	return nil
}

// Run blocks watching the file until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}

	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.Path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error("watch error", "path", w.Path, "error", err)

		case <-reload:
			if err := w.LoadOnce(ctx, "watch"); err != nil {
				w.Metrics.RecordError("watcher", "reload")
				w.Logger.Error("failed to reload race data", "path", w.Path, "error", err)
			}
		}
	}
}
