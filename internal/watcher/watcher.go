package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new content file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing content file was modified.
	OpModify
	// OpDelete indicates a content file was deleted.
	OpDelete
	// OpRename indicates a content file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a change to one content file.
type FileEvent struct {
	// Path is relative to the watched root.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the batch channel buffer.
	// Default: 16
	EventBufferSize int

	// Extensions limits directory watches to these file extensions.
	// Default: .yaml, .yml
	Extensions []string

	// IgnoreDirs are directory names never descended into.
	// Default: .git, .pagesearch
	IgnoreDirs []string

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
		Extensions:      []string{".yaml", ".yml"},
		IgnoreDirs:      []string{".git", ".pagesearch"},
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if len(o.Extensions) == 0 {
		o.Extensions = defaults.Extensions
	}
	if len(o.IgnoreDirs) == 0 {
		o.IgnoreDirs = defaults.IgnoreDirs
	}
	return o
}

// filter decides which paths under the watched root are content.
type filter struct {
	// file is set when a single content file is watched.
	file       string
	extensions []string
	ignoreDirs []string
}

func (f filter) matchFile(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	if f.file != "" {
		return rel == f.file
	}
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if f.ignoredDir(part) {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range f.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (f filter) ignoredDir(name string) bool {
	for _, d := range f.ignoreDirs {
		if name == d {
			return true
		}
	}
	return false
}
