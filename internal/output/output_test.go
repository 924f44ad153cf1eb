package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagesearch/internal/search"
)

func TestWriter_StatusIcons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status", func(w *Writer) { w.Status("🔍", "Scanning content") }, "🔍 Scanning content\n"},
		{"no icon", func(w *Writer) { w.Status("", "indented") }, "   indented\n"},
		{"success", func(w *Writer) { w.Successf("%d pages indexed", 3) }, "✅ 3 pages indexed\n"},
		{"warning", func(w *Writer) { w.Warningf("group %d", 2) }, "⚠️  group 2\n"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "boom") }, "❌ failed: boom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Results_ListsPagesAndFooter(t *testing.T) {
	// Given: the second page of a result set
	buf := &bytes.Buffer{}
	w := New(buf)
	resp := &search.Response{
		Query: "pricing",
		Results: []*search.Result{
			{Name: "Plans", Path: "/pricing/plans", Description: "Our plans", Snippet: "...the pricing\n  for teams..."},
			{Path: "/pricing/faq"},
		},
		Total:     12,
		Page:      2,
		PageSize:  10,
		PageCount: 2,
		Took:      "3ms",
	}

	// When: printing
	w.Results(resp)

	// Then: numbering continues from the page offset
	out := buf.String()
	assert.Contains(t, out, "11. Plans  /pricing/plans")
	assert.Contains(t, out, "12. /pricing/faq  /pricing/faq")
	assert.Contains(t, out, "    Our plans\n")
	assert.Contains(t, out, "...the pricing for teams...")
	assert.Contains(t, out, "Page 2 of 2 (12 results, 3ms)")
	assert.False(t, strings.Contains(out, "\x1b["))
}

func TestWriter_Results_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Results(&search.Response{Query: "+nothing"})

	assert.Equal(t, "🔍 No pages match \"+nothing\"\n", buf.String())
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON(&search.Response{Query: "q", Total: 1}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "q", got["query"])
	assert.Equal(t, float64(1), got["total"])
}
