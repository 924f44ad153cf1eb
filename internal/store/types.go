// Package store persists the page search index and runs full-text queries
// against it. Two engines are available behind the Index interface: SQLite
// FTS5 (default) and Bleve.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("index is closed")

// ErrRebuildFinished is returned when a Rebuilder is used after Commit or
// Rollback.
var ErrRebuildFinished = errors.New("rebuild already finished")

// Entry is one row of the search index: a denormalized snapshot of a page
// taken at reindex time.
type Entry struct {
	PageID      int64
	Name        string
	Description string
	// Path always starts with "/"; ancestry is expressed by prefix.
	Path       string
	DatePublic time.Time
	// Content is the tag-stripped text of the page's searchable blocks.
	Content string
}

// Result is an Entry with its relevance score for one query.
type Result struct {
	Entry
	Score float64
}

// Query is a keyword query with optional path scoping and paging.
type Query struct {
	Keywords *Expression
	// PathPrefixes restricts results to pages whose path starts with any
	// of the prefixes. Empty means no restriction.
	PathPrefixes []string
	Offset       int
	// Limit <= 0 returns every match from Offset on.
	Limit int
}

// ResultPage holds one page of ordered results and the total number of
// matches of the unpaginated query.
type ResultPage struct {
	Results []*Result
	Total   int
}

// IndexStats describes the current index contents.
type IndexStats struct {
	Backend       string
	Path          string
	DocumentCount int
	LastRebuild   time.Time
}

// RebuildOptions controls how a rebuild replaces existing contents.
type RebuildOptions struct {
	// Atomic defers the truncate to Commit, so readers see either the old
	// or the new contents. Otherwise the index is emptied immediately and
	// fills up as entries are inserted.
	Atomic bool
}

// Index is the page search index.
type Index interface {
	// Rebuild starts replacing the whole index. Only one rebuild runs at a
	// time per index; a second call blocks until the first finishes.
	Rebuild(ctx context.Context, opts RebuildOptions) (Rebuilder, error)

	// Search runs a keyword query. Results are ordered by score descending,
	// then publication date descending, then page ID ascending.
	Search(ctx context.Context, q Query) (*ResultPage, error)

	// Get returns the stored entry for a page, or nil when absent.
	Get(ctx context.Context, pageID int64) (*Entry, error)

	// AllIDs returns every indexed page ID in ascending order.
	AllIDs(ctx context.Context) ([]int64, error)

	Stats(ctx context.Context) (*IndexStats, error)
	Close() error
}

// Rebuilder receives the entries of one rebuild.
type Rebuilder interface {
	Insert(ctx context.Context, e *Entry) error
	// Commit finishes the rebuild. In atomic mode the new contents become
	// visible here.
	Commit() error
	// Rollback abandons the rebuild. In atomic mode the previous contents
	// stay in place; otherwise entries inserted so far remain.
	Rollback() error
}
