package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/pagesearch/internal/search"
)

// FormatSearchResults formats one page of results as markdown.
func FormatSearchResults(resp *search.Response, partial bool) string {
	if resp == nil || len(resp.Results) == 0 {
		query := ""
		if resp != nil {
			query = resp.Query
		}
		msg := fmt.Sprintf("No pages found for \"%s\"", query)
		if partial {
			msg += "\n\n" + partialNotice
		}
		return msg
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", resp.Query)
	fmt.Fprintf(&sb, "Found %d page", resp.Total)
	if resp.Total != 1 {
		sb.WriteString("s")
	}
	if resp.PageCount > 1 {
		fmt.Fprintf(&sb, " (page %d of %d)", resp.Page, resp.PageCount)
	}
	sb.WriteString("\n\n")
	if partial {
		sb.WriteString(partialNotice + "\n\n")
	}

	first := (resp.Page-1)*resp.PageSize + 1
	for i, r := range resp.Results {
		formatResult(&sb, first+i, r)
	}

	return sb.String()
}

const partialNotice = "_A reindex is running; results may be incomplete._"

func formatResult(sb *strings.Builder, n int, r *search.Result) {
	name := r.Name
	if name == "" {
		name = r.Path
	}
	fmt.Fprintf(sb, "### %d. %s\n", n, name)
	fmt.Fprintf(sb, "`%s` (score: %.2f", r.Path, r.Score)
	if !r.DatePublic.IsZero() {
		fmt.Fprintf(sb, ", published %s", r.DatePublic.Format("2006-01-02"))
	}
	sb.WriteString(")\n\n")
	if r.Description != "" {
		sb.WriteString(r.Description + "\n\n")
	}
	if r.Snippet != "" {
		sb.WriteString("> " + strings.Join(strings.Fields(r.Snippet), " ") + "\n\n")
	}
}

// FormatReindexSummary formats a reindex summary as markdown.
func FormatReindexSummary(out *ReindexOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Reindex complete (group %d)\n\n", out.GroupID)
	fmt.Fprintf(&sb, "- Indexed: %d\n", out.Indexed)
	skipped := 0
	for _, n := range out.Skipped {
		skipped += n
	}
	fmt.Fprintf(&sb, "- Skipped: %d\n", skipped)
	for _, reason := range sortedKeys(out.Skipped) {
		fmt.Fprintf(&sb, "  - %s: %d\n", reason, out.Skipped[reason])
	}
	fmt.Fprintf(&sb, "- Failed: %d\n", out.Failed)
	for _, f := range out.Failures {
		fmt.Fprintf(&sb, "  - page %d `%s`: %s\n", f.PageID, f.Path, f.Reason)
	}
	fmt.Fprintf(&sb, "- Duration: %dms\n", out.DurationMS)
	return sb.String()
}
