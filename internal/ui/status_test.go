package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a populated status
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)
	info := StatusInfo{
		SiteName:          "site",
		ContentPath:       "/srv/site/content",
		Pages:             40,
		Backend:           "sqlite",
		IndexPath:         "/srv/site/.pagesearch/search.db",
		Documents:         31,
		LastRebuild:       time.Now().Add(-2 * time.Hour),
		IndexSize:         2048,
		Reindex:           "idle",
		TotalQueries:      10,
		ZeroResultPercent: 20,
		TopTerms:          []TermCount{{Term: "pricing", Count: 4}},
		ZeroResultQueries: []string{"+refund -policy"},
	}

	// When: rendering
	require.NoError(t, r.Render(info))

	// Then: all sections appear
	out := buf.String()
	assert.Contains(t, out, "Search Index: site")
	assert.Contains(t, out, "(40 pages)")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "Documents:    31")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "20.0% without results")
	assert.Contains(t, out, "pricing")
	assert.Contains(t, out, "+refund -policy")
}

func TestStatusRenderer_NeverRebuilt(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.Render(StatusInfo{SiteName: "empty"}))

	assert.Contains(t, buf.String(), "Last rebuild: never")
	assert.NotContains(t, buf.String(), "Queries:")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.RenderJSON(StatusInfo{Backend: "bleve", Documents: 3}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "bleve", got["backend"])
	assert.Equal(t, float64(3), got["documents"])
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		in   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-1 * time.Minute), "1 minute ago"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-1 * time.Hour), "1 hour ago"},
		{now.Add(-50 * time.Hour), "2 days ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTime(tt.in))
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "1.0 GB", FormatBytes(1024*1024*1024))
}

func TestGetStyles(t *testing.T) {
	assert.Equal(t, NoColorStyles(), GetStyles(true))
	assert.Equal(t, DefaultStyles(), GetStyles(false))
}
