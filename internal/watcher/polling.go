package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects content changes by periodically comparing file
// modification times and sizes.
type PollingWatcher struct {
	interval  time.Duration
	filter    filter
	fileState map[string]fileSnapshot
	events    chan FileEvent
	errors    chan error
	stopCh    chan struct{}
	mu        sync.Mutex
	stopped   bool
	rootPath  string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher that matches the default
// content extensions.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	defaults := DefaultOptions()
	return &PollingWatcher{
		interval:  interval,
		filter:    filter{extensions: defaults.Extensions, ignoreDirs: defaults.IgnoreDirs},
		fileState: make(map[string]fileSnapshot),
		events:    make(chan FileEvent, 100),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
}

// Start polls root until ctx is cancelled or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	p.mu.Lock()
	p.rootPath = absPath
	state, err := p.snapshot()
	if err == nil {
		p.fileState = state
	}
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				p.mu.Lock()
				if !p.stopped {
					select {
					case p.errors <- err:
					default:
					}
				}
				p.mu.Unlock()
			}
		}
	}
}

// Stop stops polling and closes the channels. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// snapshot walks the root and records matching files. Must be called with
// the lock held.
func (p *PollingWatcher) snapshot() (map[string]fileSnapshot, error) {
	state := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.rootPath {
				return err
			}
			return nil
		}
		rel, err := filepath.Rel(p.rootPath, path)
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if rel != "." && (p.filter.file != "" || p.filter.ignoredDir(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.filter.matchFile(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state, err
}

func (p *PollingWatcher) detectChanges() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	current, err := p.snapshot()
	if err != nil {
		return fmt.Errorf("walk content for changes: %w", err)
	}

	now := time.Now()
	for rel, snap := range current {
		prev, exists := p.fileState[rel]
		switch {
		case !exists:
			p.emit(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emit(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel := range p.fileState {
		if _, exists := current[rel]; !exists {
			p.emit(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
		}
	}

	p.fileState = current
	return nil
}

// emit must be called with the lock held.
func (p *PollingWatcher) emit(event FileEvent) {
	select {
	case p.events <- event:
	default:
		slog.Warn("polling_buffer_full",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}
