package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/errors"
	"github.com/Aman-CERP/pagesearch/internal/search"
)

const testSite = `
default_theme: plain
themes:
  - {handle: plain, name: Plain}
pages:
  - id: 1
    name: Home
    path: /
    date_public: 2024-01-01T00:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 10, area: Main, type: content, fields: {content: "<p>Welcome to the garden</p>"}}
  - id: 2
    name: Tomatoes
    path: /plants/tomatoes
    date_public: 2024-02-01T00:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 20, area: Main, type: content, fields: {content: "growing tomatoes in the garden"}}
  - id: 3
    name: Draft
    path: /draft
    versions:
      - id: 1
        approved: false
        blocks:
          - {id: 30, area: Main, type: content, fields: {content: "garden draft"}}
`

func newProject(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "site.yaml"), []byte(testSite), 0644))

	cfg := config.NewConfig()
	cfg.Content.Path = "site.yaml"
	return root, cfg
}

func openTestApp(t *testing.T) *App {
	t.Helper()
	root, cfg := newProject(t)
	a, err := Open(cfg, root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpen_WiresComponents(t *testing.T) {
	a := openTestApp(t)

	assert.NotNil(t, a.Files)
	assert.NotNil(t, a.Content)
	assert.NotNil(t, a.Index)
	assert.NotNil(t, a.Indexer)
	assert.NotNil(t, a.Searcher)
	assert.NotNil(t, a.Telemetry)
	assert.NotNil(t, a.Metrics)
	assert.Equal(t, filepath.Base(a.Root), a.SiteName())
	assert.DirExists(t, a.DataDir())
}

func TestOpen_MissingContent(t *testing.T) {
	// Given a config pointing at a content file that does not exist
	root := t.TempDir()
	cfg := config.NewConfig()
	cfg.Content.Path = "missing.yaml"

	// When opening
	a, err := Open(cfg, root)

	// Then a content error is returned
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Equal(t, errors.ErrCodeContentUnavailable, errors.GetCode(err))
}

func TestOpen_UnknownBackend(t *testing.T) {
	root, cfg := newProject(t)
	cfg.Index.Backend = "elastic"

	a, err := Open(cfg, root)

	require.Error(t, err)
	assert.Nil(t, a)
	code := errors.GetCode(err)
	assert.Contains(t, []string{errors.ErrCodeConfigInvalid, errors.ErrCodeUnknownBackend}, code)
}

func TestReindexThenSearch(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()

	// Given a reindex for the configured group
	summary, err := a.Reindex(ctx, 0)
	require.NoError(t, err)

	// Then the draft page is skipped
	assert.Equal(t, int64(1), summary.GroupID)
	assert.Equal(t, 2, summary.Indexed)
	assert.Equal(t, 1, summary.SkippedTotal())

	// And a search finds the published pages only
	resp, err := a.Searcher.Search(ctx, search.Request{Query: "garden"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	for _, r := range resp.Results {
		assert.NotEqual(t, "/draft", r.Path)
	}
}

func TestStatus(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()

	info, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Pages)
	assert.Equal(t, 0, info.Documents)
	assert.Equal(t, "idle", info.Reindex)
	assert.Equal(t, int64(0), info.TotalQueries)

	_, err = a.Reindex(ctx, 0)
	require.NoError(t, err)
	_, err = a.Searcher.Search(ctx, search.Request{Query: "tomatoes"})
	require.NoError(t, err)
	_, err = a.Searcher.Search(ctx, search.Request{Query: "cucumbers"})
	require.NoError(t, err)

	info, err = a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Documents)
	assert.False(t, info.LastRebuild.IsZero())
	assert.Positive(t, info.IndexSize)
	assert.Equal(t, int64(2), info.TotalQueries)
	assert.InDelta(t, 50.0, info.ZeroResultPercent, 0.01)
	assert.Contains(t, info.ZeroResultQueries, "cucumbers")
}

func TestReload_PicksUpNewPages(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()

	updated := testSite + `
  - id: 4
    name: Peppers
    path: /plants/peppers
    date_public: 2024-03-01T00:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 40, area: Main, type: content, fields: {content: "peppers like the garden too"}}
`
	require.NoError(t, os.WriteFile(a.ContentPath(), []byte(updated), 0644))
	require.NoError(t, a.Reload())

	summary, err := a.Reindex(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Indexed)
}

func TestMCPServer(t *testing.T) {
	a := openTestApp(t)

	srv, err := a.MCPServer()
	require.NoError(t, err)
	name, _ := srv.Info()
	assert.Equal(t, "pagesearch", name)
}

func TestClose_Idempotent(t *testing.T) {
	root, cfg := newProject(t)
	a, err := Open(cfg, root)
	require.NoError(t, err)

	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
