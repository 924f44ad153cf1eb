package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the index and recent query activity.
type StatusInfo struct {
	SiteName    string    `json:"site_name"`
	ContentPath string    `json:"content_path"`
	Pages       int       `json:"pages"`
	Backend     string    `json:"backend"`
	IndexPath   string    `json:"index_path"`
	Documents   int       `json:"documents"`
	LastRebuild time.Time `json:"last_rebuild"`
	IndexSize   int64     `json:"index_size"`
	// Reindex is "running", "idle" or "error".
	Reindex string `json:"reindex"`

	TotalQueries      int64       `json:"total_queries"`
	ZeroResultPercent float64     `json:"zero_result_percent"`
	TopTerms          []TermCount `json:"top_terms,omitempty"`
	ZeroResultQueries []string    `json:"zero_result_queries,omitempty"`
}

// TermCount is a search term and how often it was queried.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes a human-readable report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Search Index: "+info.SiteName))

	_, _ = fmt.Fprintf(r.out, "  Content:      %s (%d pages)\n", info.ContentPath, info.Pages)
	_, _ = fmt.Fprintf(r.out, "  Backend:      %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Index:        %s (%s)\n", info.IndexPath, FormatBytes(info.IndexSize))
	_, _ = fmt.Fprintf(r.out, "  Documents:    %d\n", info.Documents)
	if info.LastRebuild.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last rebuild: %s\n", r.styles.Warning.Render("never"))
	} else {
		_, _ = fmt.Fprintf(r.out, "  Last rebuild: %s\n", formatTime(info.LastRebuild))
	}
	if info.Reindex != "" {
		_, _ = fmt.Fprintf(r.out, "  Reindex:      %s\n", r.renderState(info.Reindex))
	}

	if info.TotalQueries == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  Queries:      %d (%.1f%% without results)\n", info.TotalQueries, info.ZeroResultPercent)
	if len(info.TopTerms) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Top terms:")
		for _, tc := range info.TopTerms {
			_, _ = fmt.Fprintf(r.out, "    %-20s %d\n", tc.Term, tc.Count)
		}
	}
	if len(info.ZeroResultQueries) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Recent zero-result queries:")
		for _, q := range info.ZeroResultQueries {
			_, _ = fmt.Fprintf(r.out, "    %s\n", q)
		}
	}
	return nil
}

// RenderJSON writes the status as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "idle", "ready":
		return r.styles.Success.Render(state)
	case "running":
		return r.styles.Warning.Render(state)
	case "error":
		return r.styles.Error.Render(state)
	default:
		return state
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a byte count for humans.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
