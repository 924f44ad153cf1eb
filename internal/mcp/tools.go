package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string   `json:"query" jsonschema:"boolean keyword expression: +required -excluded \"exact phrase\" (alternative grouping)"`
	Paths []string `json:"paths,omitempty" jsonschema:"restrict to pages at or below these site paths, e.g. /blog"`
	Page  int      `json:"page,omitempty" jsonschema:"1-based result page, default 1"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query     string               `json:"query"`
	Results   []SearchResultOutput `json:"results" jsonschema:"one page of results, best match first"`
	Total     int                  `json:"total" jsonschema:"number of matching pages across all result pages"`
	Page      int                  `json:"page"`
	PageCount int                  `json:"page_count"`
	// Partial is set while a non-atomic reindex is rebuilding the index.
	Partial bool `json:"partial,omitempty" jsonschema:"true when a reindex is running and results may be incomplete"`
}

// SearchResultOutput is one matching page.
type SearchResultOutput struct {
	PageID      int64   `json:"page_id"`
	Name        string  `json:"name"`
	Path        string  `json:"path" jsonschema:"site path of the page"`
	Description string  `json:"description,omitempty"`
	DatePublic  string  `json:"date_public,omitempty" jsonschema:"publication date, RFC 3339"`
	Score       float64 `json:"score" jsonschema:"relevance score, higher is better"`
	Snippet     string  `json:"snippet,omitempty" jsonschema:"excerpt around the first matched term"`
}

// ReindexInput defines the input schema for the reindex tool.
type ReindexInput struct {
	GroupID int64 `json:"group_id,omitempty" jsonschema:"permission group whose read access decides which pages are indexed, default from config (1 = guest)"`
}

// ReindexOutput summarises a completed reindex.
type ReindexOutput struct {
	GroupID    int64          `json:"group_id"`
	Atomic     bool           `json:"atomic"`
	Indexed    int            `json:"indexed"`
	Skipped    map[string]int `json:"skipped"`
	Failed     int            `json:"failed"`
	Failures   []PageFailure  `json:"failures,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// PageFailure is a page that could not be indexed.
type PageFailure struct {
	PageID int64  `json:"page_id"`
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Site    SiteInfo         `json:"site"`
	Stats   IndexStats       `json:"stats"`
	Reindex *ReindexProgress `json:"reindex,omitempty"`
}

// SiteInfo identifies the indexed site.
type SiteInfo struct {
	Name        string `json:"name"`
	ContentPath string `json:"content_path"`
	GroupID     int64  `json:"group_id"`
}

// IndexStats contains statistics about the index.
type IndexStats struct {
	Backend        string `json:"backend"`
	DocumentCount  int    `json:"document_count"`
	IndexSizeBytes int64  `json:"index_size_bytes"`
	LastRebuild    string `json:"last_rebuild,omitempty"`
}

// ReindexProgress mirrors the progress of the current or last reindex.
type ReindexProgress struct {
	State          string  `json:"state"`                   // "idle", "indexing", "ready" or "error"
	GroupID        int64   `json:"group_id,omitempty"`      // Group of the current or last run
	PagesTotal     int     `json:"pages_total"`             // Pages to visit
	PagesProcessed int     `json:"pages_processed"`         // Pages visited so far
	Indexed        int     `json:"indexed"`                 // Pages written
	Skipped        int     `json:"skipped"`                 // Pages excluded
	Failed         int     `json:"failed"`                  // Page-local failures
	ProgressPct    float64 `json:"progress_pct"`            // 0-100
	ElapsedSeconds int     `json:"elapsed_seconds"`         // Since the run started
	ErrorMessage   string  `json:"error_message,omitempty"` // Set when state is "error"
}
