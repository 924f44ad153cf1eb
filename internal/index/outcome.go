package index

import (
	"sort"
	"time"
)

// Status is the result of visiting one page during a reindex.
type Status string

const (
	StatusIndexed Status = "indexed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Reason explains why a page was skipped or failed.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonSystemPage       Reason = "system_page"
	ReasonExcluded         Reason = "excluded"
	ReasonUnapproved       Reason = "unapproved"
	ReasonThemeUnavailable Reason = "theme_unavailable"
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonPageNotFound     Reason = "page_not_found"

	ReasonPermissionError Reason = "permission_error"
	ReasonBlocksError     Reason = "blocks_error"
	ReasonExtractionError Reason = "extraction_error"
)

// Outcome records what happened to one page.
type Outcome struct {
	PageID int64  `json:"page_id"`
	Path   string `json:"path,omitempty"`
	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`
	// Err is the page-local failure, or the secondary hook failure of an
	// indexed page.
	Err error `json:"-"`
}

// Summary aggregates the outcomes of one reindex run.
type Summary struct {
	GroupID  int64          `json:"group_id"`
	Atomic   bool           `json:"atomic"`
	Indexed  int            `json:"indexed"`
	Skipped  map[Reason]int `json:"skipped"`
	Failed   int            `json:"failed"`
	Outcomes []Outcome      `json:"outcomes"`
	Duration time.Duration  `json:"duration"`
}

func newSummary(groupID int64, atomic bool) *Summary {
	return &Summary{
		GroupID: groupID,
		Atomic:  atomic,
		Skipped: make(map[Reason]int),
	}
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusIndexed:
		s.Indexed++
	case StatusSkipped:
		s.Skipped[o.Reason]++
	case StatusFailed:
		s.Failed++
	}
}

// Count is the number of pages written to the index.
func (s *Summary) Count() int {
	return s.Indexed
}

// SkippedTotal is the number of pages skipped for any reason.
func (s *Summary) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// SkipReasons returns the skip reasons seen, sorted.
func (s *Summary) SkipReasons() []Reason {
	reasons := make([]Reason, 0, len(s.Skipped))
	for r := range s.Skipped {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

// Failures returns the failed outcomes in page order.
func (s *Summary) Failures() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}
