package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSite = `
default_theme: plain
groups:
  - id: 7
    name: Editors
themes:
  - handle: plain
    name: Plain
    searchable_areas: ["Sidebar"]
pages:
  - id: 3
    parent_id: 1
    name: About
    path: /about
    date_public: 2024-03-01T10:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 30, area: Main, type: content, fields: {content: "<p>About us</p>"}}
          - {id: 31, area: Sidebar, type: content, fields: {content: "side"}}
      - id: 2
        approved: false
        name: About (draft)
        blocks:
          - {id: 32, area: Main, type: content, fields: {content: "draft text"}}
  - id: 1
    name: Home
    description: Welcome
    path: /
    theme: plain
    attributes: {exclude_search_index: "0", meta_title: Home}
    permissions: {read: [1, 2]}
    versions:
      - {id: 1, approved: true}
  - id: 5
    name: Draft only
    path: /draft
    versions:
      - {id: 1, approved: false}
`

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStoreFromBytes([]byte(testSite))
	require.NoError(t, err)
	return s
}

func TestFileStore_PageIDs_Ascending(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.PageIDs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 5}, ids)
}

func TestFileStore_Page_ActivePicksApprovedVersion(t *testing.T) {
	// Given: a page with an approved v1 and a newer unapproved v2
	s := newTestStore(t)
	ctx := context.Background()

	// When: loading the active version
	active, err := s.Page(ctx, 3, VersionActive)
	require.NoError(t, err)

	// Then: the approved version is returned
	assert.Equal(t, int64(1), active.Version.ID)
	assert.True(t, active.IsApproved())
	assert.Equal(t, "About", active.Name)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), active.DatePublic)

	// And: the recent version is the draft, with its own name
	recent, err := s.Page(ctx, 3, VersionRecent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), recent.Version.ID)
	assert.False(t, recent.IsApproved())
	assert.Equal(t, "About (draft)", recent.Name)
}

func TestFileStore_Page_ActiveFallsBackToRecent(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Page(context.Background(), 5, VersionActive)

	require.NoError(t, err)
	assert.False(t, p.IsApproved())
}

func TestFileStore_Page_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Page(context.Background(), 99, VersionActive)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Page_AttributesAndPermissions(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Page(context.Background(), 1, VersionActive)

	require.NoError(t, err)
	assert.False(t, p.BoolAttribute(AttrExcludeSearchIndex))
	assert.Equal(t, "Home", p.AttributeValue("meta_title"))
	assert.Equal(t, "", p.AttributeValue("missing"))
	require.NotNil(t, p.Permissions)
	assert.Equal(t, []int64{1, 2}, p.Permissions.Read)

	// Mutating the returned page must not leak into the store
	p.Attributes["meta_title"] = "changed"
	again, err := s.Page(context.Background(), 1, VersionActive)
	require.NoError(t, err)
	assert.Equal(t, "Home", again.AttributeValue("meta_title"))
}

func TestFileStore_Blocks_ByAreaAndVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	active, err := s.Page(ctx, 3, VersionActive)
	require.NoError(t, err)

	main, err := s.Blocks(ctx, active, "Main")
	require.NoError(t, err)
	require.Len(t, main, 1)
	assert.Equal(t, int64(30), main[0].ID)
	assert.Equal(t, "<p>About us</p>", main[0].Fields["content"])

	empty, err := s.Blocks(ctx, active, "Footer")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileStore_Theme(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Page without theme uses the site default
	about, err := s.Page(ctx, 3, VersionActive)
	require.NoError(t, err)
	th, err := s.Theme(ctx, about)
	require.NoError(t, err)
	assert.Equal(t, "plain", th.Handle)
	assert.Equal(t, []string{"Sidebar"}, th.SearchableAreas)

	// Unknown theme handle is not found
	_, err = s.Theme(ctx, &Page{ID: 1, ThemeHandle: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Group_BuiltinsAndCustom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g, err := s.Group(ctx, GroupGuest)
	require.NoError(t, err)
	assert.Equal(t, "Guest", g.Name)

	g, err = s.Group(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Editors", g.Name)

	_, err = s.Group(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_RejectsInvalidSites(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate ids", "pages:\n  - {id: 1, path: /a}\n  - {id: 1, path: /b}\n"},
		{"relative path", "pages:\n  - {id: 1, path: a}\n"},
		{"zero id", "pages:\n  - {id: 0, path: /a}\n"},
		{"bad yaml", "pages: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileStoreFromBytes([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestFileStore_DirectoryAndReload(t *testing.T) {
	// Given: a site split across two files
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-pages.yaml"), []byte("pages:\n  - {id: 2, path: /b}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-more.yml"), []byte("pages:\n  - {id: 1, path: /a}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ids, err := s.PageIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, dir, s.Path())

	// When: a file changes and the store reloads
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-more.yml"), []byte("pages:\n  - {id: 9, path: /z}\n"), 0644))
	require.NoError(t, s.Reload())

	// Then: the new snapshot is served
	ids, err = s.PageIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 9}, ids)
}

func TestFileStore_CanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.PageIDs(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBoolAttribute(t *testing.T) {
	for _, v := range []string{"1", "true", "Yes", " on "} {
		p := &Page{Attributes: map[string]string{"x": v}}
		assert.True(t, p.BoolAttribute("x"), v)
	}
	for _, v := range []string{"", "0", "false", "no"} {
		p := &Page{Attributes: map[string]string{"x": v}}
		assert.False(t, p.BoolAttribute("x"), v)
	}
	assert.False(t, (&Page{}).BoolAttribute("x"))
}
