package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/pagination"
	"github.com/Aman-CERP/pagesearch/internal/store"
)

// PageList is one keyword query. Filters are recorded lazily; nothing runs
// until GetPage. A PageList is safe for concurrent use but is meant to be
// owned by a single caller.
type PageList struct {
	searcher *Searcher

	mu        sync.Mutex
	raw       string
	keywords  *store.Expression
	filtered  bool
	parseErr  error
	paths     []string
	pathErr   error
	pager     *pagination.Pager
	retrieved bool
}

// FilterByKeywordsBoolean restricts results to pages matching the boolean
// expression expr and ranks them by relevance. Calling it again replaces
// the previous expression.
func (l *PageList) FilterByKeywordsBoolean(expr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.raw = expr
	l.filtered = true
	l.keywords, l.parseErr = store.ParseBoolean(expr)
}

// AddSearchPath adds a path prefix. Multiple prefixes are OR-ed. Prefixes
// added after the first GetPage are ignored.
func (l *PageList) AddSearchPath(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.retrieved {
		slog.Debug("search_path_ignored",
			slog.String("path", prefix),
			slog.String("reason", "results already retrieved"))
		return
	}

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return
	}
	if !strings.HasPrefix(prefix, "/") {
		if l.pathErr == nil {
			l.pathErr = errors.New(errors.ErrCodeInvalidPath, "search path must start with /", nil).
				WithDetail("path", prefix)
		}
		return
	}
	for _, p := range l.paths {
		if p == prefix {
			return
		}
	}
	l.paths = append(l.paths, prefix)
}

// SetCurrentPage selects the 1-based page returned by GetPage.
func (l *PageList) SetCurrentPage(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pager.SetCurrent(n)
}

// SetItemsPerPage changes the page size. Ignored after retrieval started.
func (l *PageList) SetItemsPerPage(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retrieved || n <= 0 {
		return
	}
	current := l.pager.Current()
	l.pager = pagination.New(n)
	l.pager.SetCurrent(current)
}

// SearchPaths returns the accumulated path prefixes.
func (l *PageList) SearchPaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

// Pager exposes the totals of the last retrieval.
func (l *PageList) Pager() *pagination.Pager {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pager
}

// GetPage runs the query and returns the current page of results, ordered
// by score descending then publication date descending. The pager's total
// is updated from the same filtered query.
func (l *PageList) GetPage(ctx context.Context) ([]*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.filtered {
		return nil, errors.New(errors.ErrCodeNoKeywordFilter, "no keyword filter set", nil).
			WithSuggestion("Call FilterByKeywordsBoolean before retrieving results")
	}
	if l.parseErr != nil {
		return nil, errors.New(errors.ErrCodeInvalidQuery, "invalid keyword expression", l.parseErr).
			WithDetail("query", l.raw)
	}
	if l.pathErr != nil {
		return nil, l.pathErr
	}
	l.retrieved = true

	s := l.searcher
	start := time.Now()

	if l.keywords.IsEmpty() {
		l.pager.SetTotal(0)
		s.record(l.raw, len(l.paths) > 0, 0, time.Since(start), nil)
		return []*Result{}, nil
	}

	page, err := s.index.Search(ctx, store.Query{
		Keywords:     l.keywords,
		PathPrefixes: l.paths,
		Offset:       l.pager.Offset(),
		Limit:        l.pager.Limit(),
	})
	latency := time.Since(start)
	if err != nil {
		s.record(l.raw, len(l.paths) > 0, 0, latency, err)
		return nil, errors.New(errors.ErrCodeSearchFailed, "search failed", err).
			WithDetail("query", l.raw)
	}

	l.pager.SetTotal(page.Total)
	s.record(l.raw, len(l.paths) > 0, page.Total, latency, nil)

	slog.Debug("search_executed",
		slog.String("query", l.raw),
		slog.Int("paths", len(l.paths)),
		slog.Int("page", l.pager.Current()),
		slog.Int("results", len(page.Results)),
		slog.Int("total", page.Total),
		slog.Duration("latency", latency))

	terms := termTexts(l.keywords)
	results := make([]*Result, 0, len(page.Results))
	for _, r := range page.Results {
		results = append(results, &Result{
			PageID:      r.PageID,
			Name:        r.Name,
			Description: r.Description,
			Path:        r.Path,
			DatePublic:  r.DatePublic,
			Score:       r.Score,
			Snippet:     Snippet(r.Content, terms, s.snippetLength),
		})
	}
	return results, nil
}

func termTexts(e *store.Expression) []string {
	terms := e.PositiveTerms()
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, t.Text)
	}
	return out
}
