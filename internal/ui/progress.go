package ui

import (
	"sync"
	"time"
)

// speedInterval is the minimum time between throughput samples.
const speedInterval = 500 * time.Millisecond

// ProgressTracker holds the state shown by the TUI. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	path       string
	startTime  time.Time
	stageStart time.Time
	errors     []ErrorEvent
	warnings   []ErrorEvent

	lastCurrent int
	lastSample  time.Time
	speed       float64 // pages/sec, smoothed
}

// ProgressStats is a snapshot of the tracker.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Path       string
	Speed      float64
	ErrorCount int
	WarnCount  int
}

// NewProgressTracker creates a tracker in the preparing stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StagePreparing,
		startTime:  now,
		stageStart: now,
		lastSample: now,
	}
}

// SetStage moves to stage and resets the counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.path = ""
	p.stageStart = now
	p.lastCurrent = 0
	p.lastSample = now
	p.speed = 0
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current int, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if path != "" {
		p.path = path
	}

	now := time.Now()
	elapsed := now.Sub(p.lastSample)
	if elapsed < speedInterval {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		sample := float64(delta) / elapsed.Seconds()
		if p.speed == 0 {
			p.speed = sample
		} else {
			p.speed = 0.2*sample + 0.8*p.speed
		}
	}
	p.lastCurrent = current
	p.lastSample = now
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progress float64
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
		if progress > 1 {
			progress = 1
		}
	}

	return ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Progress:   progress,
		ETA:        p.eta(progress),
		Path:       p.path,
		Speed:      p.speed,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
	}
}

// eta extrapolates the stage duration from progress so far. Must be
// called with the lock held.
func (p *ProgressTracker) eta(progress float64) time.Duration {
	if progress <= 0 || progress >= 1 {
		return 0
	}
	elapsed := time.Since(p.stageStart)
	remaining := time.Duration(float64(elapsed)/progress) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.warnings...)
}
