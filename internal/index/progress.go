package index

import (
	"sync"
	"time"
)

// RunState is the overall reindex state.
type RunState string

const (
	// StateIdle means no reindex has run in this process.
	StateIdle RunState = "idle"
	// StateIndexing means a reindex is in progress.
	StateIndexing RunState = "indexing"
	// StateReady means the last reindex completed.
	StateReady RunState = "ready"
	// StateError means the last reindex aborted.
	StateError RunState = "error"
)

// ProgressSnapshot is an immutable copy of reindex progress.
type ProgressSnapshot struct {
	State          string    `json:"state"`
	GroupID        int64     `json:"group_id,omitempty"`
	PagesTotal     int       `json:"pages_total"`
	PagesProcessed int       `json:"pages_processed"`
	Indexed        int       `json:"indexed"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	ProgressPct    float64   `json:"progress_pct"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// Progress tracks the current or last reindex run. It is safe for
// concurrent use.
type Progress struct {
	mu sync.RWMutex

	state      RunState
	groupID    int64
	total      int
	processed  int
	indexed    int
	skipped    int
	failed     int
	startTime  time.Time
	finishTime time.Time
	errMessage string
}

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	return &Progress{state: StateIdle}
}

func (p *Progress) begin(groupID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateIndexing
	p.groupID = groupID
	p.total, p.processed = 0, 0
	p.indexed, p.skipped, p.failed = 0, 0, 0
	p.startTime = time.Now()
	p.finishTime = time.Time{}
	p.errMessage = ""
}

func (p *Progress) setTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

func (p *Progress) record(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	switch o.Status {
	case StatusIndexed:
		p.indexed++
	case StatusSkipped:
		p.skipped++
	case StatusFailed:
		p.failed++
	}
}

func (p *Progress) setError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateError
	p.errMessage = message
	p.finishTime = time.Now()
}

func (p *Progress) setReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateReady
	p.finishTime = time.Now()
}

// IsIndexing returns true while a reindex is running.
func (p *Progress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateIndexing
}

// Snapshot returns a copy of the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.total > 0 {
		pct = float64(p.processed) / float64(p.total) * 100.0
	}

	var elapsed time.Duration
	switch {
	case p.startTime.IsZero():
	case p.finishTime.IsZero():
		elapsed = time.Since(p.startTime)
	default:
		elapsed = p.finishTime.Sub(p.startTime)
	}

	return ProgressSnapshot{
		State:          string(p.state),
		GroupID:        p.groupID,
		PagesTotal:     p.total,
		PagesProcessed: p.processed,
		Indexed:        p.indexed,
		Skipped:        p.skipped,
		Failed:         p.failed,
		ProgressPct:    pct,
		StartedAt:      p.startTime,
		ElapsedSeconds: int(elapsed.Seconds()),
		ErrorMessage:   p.errMessage,
	}
}
