package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_FailsForNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestReindexModel_StageIndicators(t *testing.T) {
	// Given: a model in the indexing stage
	tracker := NewProgressTracker()
	model := newReindexModel(tracker, "/srv/site")
	model.styles = NoColorStyles()
	tracker.SetStage(StageIndexing, 10)
	tracker.Update(4, "/about/team")

	// When: rendering
	view := model.View()

	// Then: stages, counts and current path are shown
	assert.Contains(t, view, "Preparing")
	assert.Contains(t, view, "Indexing")
	assert.Contains(t, view, "Committing")
	assert.Contains(t, view, "4 / 10 pages")
	assert.Contains(t, view, "/about/team")
	assert.Contains(t, view, "/srv/site")
}

func TestReindexModel_PreparingWithoutTotal(t *testing.T) {
	model := newReindexModel(NewProgressTracker(), "")

	assert.Contains(t, model.View(), "Preparing...")
}

func TestReindexModel_CompleteView(t *testing.T) {
	model := newReindexModel(NewProgressTracker(), "")
	model.styles = NoColorStyles()

	next, cmd := model.Update(completeMsg(CompletionStats{
		Indexed:  7,
		Skipped:  map[string]int{"excluded": 2},
		Failed:   1,
		Duration: 3 * time.Second,
	}))

	view := next.View()
	assert.NotNil(t, cmd)
	assert.Contains(t, view, "Reindex complete")
	assert.Contains(t, view, "7")
	assert.Contains(t, view, "1 pages failed")
}

func TestReindexModel_QuitKey(t *testing.T) {
	model := newReindexModel(NewProgressTracker(), "")

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", next.View())
}

func TestReindexModel_WindowResize(t *testing.T) {
	model := newReindexModel(NewProgressTracker(), "")

	model.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	assert.Equal(t, 20, model.progressBar.Width)
	assert.Equal(t, 40, model.contentWidth())

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 100, model.progressBar.Width)
	assert.Equal(t, 116, model.contentWidth())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{time.Hour + 3*time.Minute, "1h 3m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "/short", truncatePath("/short", 20))
	assert.Equal(t, ".../page", truncatePath("/very/long/page", 8))
	assert.Equal(t, "...", truncatePath("/abc/def", 2))
}
