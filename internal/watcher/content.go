package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ContentWatcher watches a content file or directory, preferring fsnotify
// and falling back to polling.
type ContentWatcher struct {
	fsWatcher      *fsnotify.Watcher
	poller         *PollingWatcher
	debouncer      *Debouncer
	filter         filter
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	rootPath       string
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// New creates a content watcher. fsnotify is tried first; polling is used
// when it cannot be initialised or ForcePolling is set.
func New(opts Options) (*ContentWatcher, error) {
	opts = opts.WithDefaults()

	w := &ContentWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		filter:    filter{extensions: opts.Extensions, ignoreDirs: opts.IgnoreDirs},
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			return w, nil
		}
		slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
	}
	w.poller = NewPollingWatcher(opts.PollInterval)
	return w, nil
}

// Start watches path, a content file or a directory of content files,
// until ctx is cancelled or Stop is called.
func (w *ContentWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat content path: %w", err)
	}

	w.mu.Lock()
	if info.IsDir() {
		w.rootPath = absPath
	} else {
		w.rootPath = filepath.Dir(absPath)
		w.filter.file = filepath.Base(absPath)
	}
	w.mu.Unlock()

	go w.forward(ctx)

	if w.fsWatcher != nil {
		return w.startFsnotify(ctx)
	}
	return w.startPolling(ctx)
}

func (w *ContentWatcher) startFsnotify(ctx context.Context) error {
	if err := w.addDirs(w.rootPath); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *ContentWatcher) startPolling(ctx context.Context) error {
	w.poller.filter = w.filter

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.poller.Events():
				if !ok {
					return
				}
				w.debouncer.Add(event)
			case err, ok := <-w.poller.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()

	err := w.poller.Start(ctx, w.rootPath)
	if ctx.Err() != nil {
		_ = w.Stop()
	}
	return err
}

// handle converts an fsnotify event and passes content changes on.
func (w *ContentWatcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		return
	}

	if event.Op&fsnotify.Create != 0 && w.filter.file == "" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.filter.ignoredDir(info.Name()) {
				_ = w.addDirs(event.Name)
			}
			return
		}
	}

	if !w.filter.matchFile(rel) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

// addDirs registers root and, for directory targets, every subdirectory.
func (w *ContentWatcher) addDirs(root string) error {
	if w.filter.file != "" {
		return w.fsWatcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *ContentWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) > 0 {
				w.emitBatch(batch)
			}
		}
	}
}

func (w *ContentWatcher) emitBatch(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		dropped := w.droppedBatches.Add(1)
		slog.Warn("watch_batch_dropped",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", dropped))
	}
}

func (w *ContentWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call multiple
// times.
func (w *ContentWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns debounced batches of content changes.
func (w *ContentWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *ContentWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *ContentWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Mode returns "fsnotify" or "polling".
func (w *ContentWatcher) Mode() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the watched directory.
func (w *ContentWatcher) RootPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rootPath
}
