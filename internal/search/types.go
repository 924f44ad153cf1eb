// Package search is the query layer over the page search index. A PageList
// collects a boolean keyword filter and path scopes, then retrieves one
// relevance-ranked page of results at a time.
package search

import (
	"errors"
	"time"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Result is one page returned by a query.
type Result struct {
	PageID      int64     `json:"page_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Path        string    `json:"path"`
	DatePublic  time.Time `json:"date_public"`
	Score       float64   `json:"score"`
	// Snippet is an excerpt of the indexed content around the first
	// matched term.
	Snippet string `json:"snippet"`
}

// Request is a one-shot query used by the CLI and the MCP tools.
type Request struct {
	Query string
	Paths []string
	// Page is 1-based; values below 1 select the first page.
	Page int
	// PageSize overrides the searcher default when positive.
	PageSize int
}

// Response is one page of results plus paging totals.
type Response struct {
	Query     string    `json:"query"`
	Results   []*Result `json:"results"`
	Total     int       `json:"total"`
	Page      int       `json:"page"`
	PageSize  int       `json:"page_size"`
	PageCount int       `json:"page_count"`
	Took      string    `json:"took"`
}
