package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 500 * time.Millisecond

// Enqueuer accepts ingest jobs. *Pool implements it.
type Enqueuer interface {
	Enqueue(job Job) bool
}

// Watcher re-ingests a collection whenever its source file changes.
//
// Parent directories are watched rather than the files themselves so that
// editors that save by writing a new file and renaming it over the old one
// are still noticed.
type Watcher struct {
	sources  map[string]string
	enqueuer Enqueuer
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a Watcher for sources, a map of file path to collection.
func NewWatcher(sources map[string]string, enqueuer Enqueuer, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one source file is required")
	}
	if enqueuer == nil {
		return nil, errors.New("enqueuer is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs := make(map[string]string, len(sources))
	for path, collection := range sources {
		p, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		abs[filepath.Clean(p)] = collection
	}

	return &Watcher{
		sources:  abs,
		enqueuer: enqueuer,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]bool{}
	for path := range w.sources {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	w.logger.Info("watching documents", "files", len(w.sources))

	var (
		mu     sync.Mutex
		timers = map[string]*time.Timer{}
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			path := filepath.Clean(event.Name)
			collection, tracked := w.sources[path]
			if !tracked {
				continue
			}

			mu.Lock()
			if t, ok := timers[path]; ok {
				t.Reset(w.debounce)
			} else {
				timers[path] = time.AfterFunc(w.debounce, func() {
					mu.Lock()
					delete(timers, path)
					mu.Unlock()

					w.logger.Info("document changed, re-ingesting", "path", path, "collection", collection)
					w.enqueuer.Enqueue(Job{Collection: collection, Path: path})
				})
			}
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}
