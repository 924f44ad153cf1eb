package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagesearch/internal/blocks"
	"github.com/Aman-CERP/pagesearch/internal/config"
	"github.com/Aman-CERP/pagesearch/internal/content"
	"github.com/Aman-CERP/pagesearch/internal/index"
	"github.com/Aman-CERP/pagesearch/internal/permission"
	"github.com/Aman-CERP/pagesearch/internal/search"
	"github.com/Aman-CERP/pagesearch/internal/store"
	"github.com/Aman-CERP/pagesearch/internal/telemetry"
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
          - {id: 10, area: Main, type: content, fields: {content: "<p>Welcome to our pricing overview</p>"}}
  - id: 2
    name: Pricing
    description: Plans and prices
    path: /pricing
    date_public: 2024-02-01T00:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 20, area: Main, type: content, fields: {content: "pricing for teams"}}
  - id: 3
    name: Team pricing
    path: /pricing/teams
    date_public: 2024-03-01T00:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 30, area: Main, type: content, fields: {content: "pricing details for large teams"}}
  - id: 4
    name: Draft
    path: /draft
    versions:
      - id: 1
        approved: false
        blocks:
          - {id: 40, area: Main, type: content, fields: {content: "pricing draft"}}
`

type testEnv struct {
	srv       *Server
	index     store.Index
	telemetry *telemetry.QueryMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cs, err := content.NewFileStoreFromBytes([]byte(testSite))
	require.NoError(t, err)

	idx, err := store.NewSQLiteIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ix, err := index.New(index.Dependencies{
		Content:     cs,
		Permissions: permission.NewACLEvaluator(cs),
		Blocks:      blocks.NewTypes(nil),
		Index:       idx,
	}, index.Config{})
	require.NoError(t, err)

	qm := telemetry.NewQueryMetrics(nil)
	t.Cleanup(func() { _ = qm.Close() })

	searcher, err := search.NewSearcher(idx, search.WithTelemetry(qm))
	require.NoError(t, err)

	srv, err := NewServer(Dependencies{
		Searcher:    searcher,
		Indexer:     ix,
		Index:       idx,
		Content:     cs,
		Telemetry:   qm,
		Config:      config.NewConfig(),
		SiteName:    "example",
		ContentPath: "/srv/example/content",
	})
	require.NoError(t, err)

	return &testEnv{srv: srv, index: idx, telemetry: qm}
}

func (e *testEnv) reindex(t *testing.T) *ReindexOutput {
	t.Helper()
	result, err := e.srv.CallTool(context.Background(), "reindex", map[string]any{})
	require.NoError(t, err)
	out, ok := result.(*ReindexOutput)
	require.True(t, ok, "expected *ReindexOutput, got %T", result)
	return out
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		deps Dependencies
	}{
		{"no searcher", Dependencies{Indexer: env.srv.indexer, Index: env.index}},
		{"no indexer", Dependencies{Searcher: env.srv.searcher, Index: env.index}},
		{"no index", Dependencies{Searcher: env.srv.searcher, Indexer: env.srv.indexer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(tt.deps)
			assert.Error(t, err)
			assert.Nil(t, srv)
		})
	}
}

func TestServer_InfoAndTools(t *testing.T) {
	env := newTestEnv(t)

	name, _ := env.srv.Info()
	assert.Equal(t, "pagesearch", name)
	assert.NotNil(t, env.srv.MCPServer())

	var names []string
	for _, tool := range env.srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search", "reindex", "index_status"}, names)
}

func TestCallTool_Reindex_ReturnsSummary(t *testing.T) {
	// Given: a fresh server
	env := newTestEnv(t)

	// When: reindexing with the configured group
	out := env.reindex(t)

	// Then: approved pages are indexed and the draft skipped
	assert.Equal(t, int64(1), out.GroupID)
	assert.Equal(t, 3, out.Indexed)
	assert.Equal(t, map[string]int{"unapproved": 1}, out.Skipped)
	assert.Zero(t, out.Failed)

	ids, err := env.index.AllIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestCallTool_Reindex_UnknownGroup(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.srv.CallTool(context.Background(), "reindex", map[string]any{"group_id": float64(99)})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeGroupNotFound, mcpErr.Code)
}

func TestCallTool_Search_ReturnsMarkdown(t *testing.T) {
	// Given: an indexed site
	env := newTestEnv(t)
	env.reindex(t)

	// When: searching within /pricing
	result, err := env.srv.CallTool(context.Background(), "search", map[string]any{
		"query": "pricing",
		"paths": []any{"/pricing"},
	})

	// Then: only pages under /pricing are listed
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok, "expected string result, got %T", result)
	assert.Contains(t, text, "## Search Results for \"pricing\"")
	assert.Contains(t, text, "Found 2 pages")
	assert.Contains(t, text, "`/pricing`")
	assert.Contains(t, text, "`/pricing/teams`")
	assert.NotContains(t, text, "### 3.")
	assert.NotContains(t, text, "Draft")
}

func TestCallTool_Search_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	env.reindex(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing query", map[string]any{}},
		{"whitespace query", map[string]any{"query": "   "}},
		{"relative path", map[string]any{"query": "pricing", "paths": []any{"pricing"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.srv.CallTool(context.Background(), "search", tt.args)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestSearchHandler_StructuredOutput(t *testing.T) {
	env := newTestEnv(t)
	env.reindex(t)

	_, out, err := env.srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "+teams", Page: 1})

	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.PageCount)
	assert.False(t, out.Partial)
	require.Len(t, out.Results, 2)
	for _, r := range out.Results {
		assert.Contains(t, []string{"/pricing", "/pricing/teams"}, r.Path)
		assert.NotEmpty(t, r.DatePublic)
	}
}

func TestCallTool_IndexStatus(t *testing.T) {
	// Given: an indexed site
	env := newTestEnv(t)
	env.reindex(t)

	// When: asking for status
	result, err := env.srv.CallTool(context.Background(), "index_status", nil)

	// Then: counts and progress are reported
	require.NoError(t, err)
	out, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, "example", out.Site.Name)
	assert.Equal(t, int64(1), out.Site.GroupID)
	assert.Equal(t, "sqlite", out.Stats.Backend)
	assert.Equal(t, 3, out.Stats.DocumentCount)
	require.NotNil(t, out.Reindex)
	assert.Equal(t, "ready", out.Reindex.State)
	assert.Equal(t, 4, out.Reindex.PagesProcessed)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"document_count":3`)
}

func TestCallTool_UnknownTool(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.srv.CallTool(context.Background(), "search_code", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServe_UnknownTransport(t *testing.T) {
	env := newTestEnv(t)

	err := env.srv.Serve(context.Background(), "sse")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}
