package ui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// PlainRenderer writes one line per update, for CI logs and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	stage  Stage
	errors []ErrorEvent
}

var _ Renderer = (*PlainRenderer)(nil)

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	msg := event.Message
	if msg == "" {
		msg = event.Path
	}

	// [STAGE] current/total - message
	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Path != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Path, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d pages indexed, %d skipped, %d failed in %s\n",
		stats.Indexed, stats.SkippedTotal(), stats.Failed, stats.Duration.Round(100*time.Millisecond))

	if len(stats.Skipped) > 0 {
		reasons := make([]string, 0, len(stats.Skipped))
		for reason := range stats.Skipped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		_, _ = fmt.Fprintln(r.out, "Skipped:")
		for _, reason := range reasons {
			_, _ = fmt.Fprintf(r.out, "  %-18s %d\n", reason, stats.Skipped[reason])
		}
	}

	if stats.Backend != "" {
		mode := "in place"
		if stats.Atomic {
			mode = "atomic"
		}
		_, _ = fmt.Fprintf(r.out, "Backend: %s (%s, group %d)\n", stats.Backend, mode, stats.GroupID)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
