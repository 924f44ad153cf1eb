package search

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/pagesearch/internal/metrics"
	"github.com/Aman-CERP/pagesearch/internal/pagination"
	"github.com/Aman-CERP/pagesearch/internal/store"
	"github.com/Aman-CERP/pagesearch/internal/telemetry"
)

// DefaultSnippetLength is the excerpt length in runes.
const DefaultSnippetLength = 200

// Searcher creates page lists over one index and records every executed
// query.
type Searcher struct {
	index         store.Index
	telemetry     *telemetry.QueryMetrics // optional
	metrics       *metrics.Metrics        // optional
	pageSize      int
	snippetLength int
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithTelemetry records query patterns, latency and zero-result queries.
func WithTelemetry(m *telemetry.QueryMetrics) Option {
	return func(s *Searcher) {
		s.telemetry = m
	}
}

// WithMetrics exports query counters and latency to Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// WithPageSize sets the default number of results per page.
func WithPageSize(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSnippetLength sets the excerpt length in runes. Zero disables
// snippets.
func WithSnippetLength(n int) Option {
	return func(s *Searcher) {
		if n >= 0 {
			s.snippetLength = n
		}
	}
}

// NewSearcher creates a searcher over index.
func NewSearcher(index store.Index, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrNilDependency)
	}
	s := &Searcher{
		index:         index,
		pageSize:      pagination.DefaultPageSize,
		snippetLength: DefaultSnippetLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PageSize returns the default number of results per page.
func (s *Searcher) PageSize() int {
	return s.pageSize
}

// NewPageList starts a new query.
func (s *Searcher) NewPageList() *PageList {
	return &PageList{
		searcher: s,
		pager:    pagination.New(s.pageSize),
	}
}

// Search runs req and returns one page of results.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	list := s.NewPageList()
	if req.PageSize > 0 {
		list.SetItemsPerPage(req.PageSize)
	}
	list.FilterByKeywordsBoolean(req.Query)
	for _, p := range req.Paths {
		list.AddSearchPath(p)
	}
	list.SetCurrentPage(req.Page)

	results, err := list.GetPage(ctx)
	if err != nil {
		return nil, err
	}

	pager := list.Pager()
	return &Response{
		Query:     req.Query,
		Results:   results,
		Total:     pager.Total(),
		Page:      pager.Current(),
		PageSize:  pager.PageSize(),
		PageCount: pager.PageCount(),
		Took:      time.Since(start).Round(time.Microsecond).String(),
	}, nil
}

// record reports one executed query to telemetry and metrics.
func (s *Searcher) record(raw string, pathScoped bool, total int, latency time.Duration, err error) {
	s.metrics.ObserveQuery(latency, total, err)
	if s.telemetry == nil || err != nil {
		return
	}
	s.telemetry.Record(telemetry.QueryEvent{
		Query:       raw,
		Kind:        telemetry.ClassifyQuery(raw),
		PathScoped:  pathScoped,
		ResultCount: total,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}
