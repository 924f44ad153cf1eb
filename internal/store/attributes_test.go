package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagesearch/internal/content"
)

func newAttributeIndex(t *testing.T) *AttributeIndex {
	t.Helper()
	db, err := OpenMetaDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	attrs, err := NewAttributeIndex(db)
	require.NoError(t, err)
	return attrs
}

func TestAttributeIndex_ReindexPageReplacesRows(t *testing.T) {
	attrs := newAttributeIndex(t)
	ctx := context.Background()

	// Given: a page indexed with two attributes
	page := &content.Page{ID: 5, Attributes: map[string]string{"topic": "space", "audience": "kids"}}
	require.NoError(t, attrs.ReindexPage(ctx, page))

	// When: the page is reindexed with one attribute
	page.Attributes = map[string]string{"topic": "oceans"}
	require.NoError(t, attrs.ReindexPage(ctx, page))

	// Then: only the current attributes remain
	got, err := attrs.Attributes(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"topic": "oceans"}, got)
}

func TestAttributeIndex_PagesWith(t *testing.T) {
	attrs := newAttributeIndex(t)
	ctx := context.Background()

	require.NoError(t, attrs.ReindexPage(ctx, &content.Page{ID: 9, Attributes: map[string]string{"topic": "space"}}))
	require.NoError(t, attrs.ReindexPage(ctx, &content.Page{ID: 2, Attributes: map[string]string{"topic": "space"}}))
	require.NoError(t, attrs.ReindexPage(ctx, &content.Page{ID: 4, Attributes: map[string]string{"topic": "oceans"}}))

	ids, err := attrs.PagesWith(ctx, "topic", "space")

	require.NoError(t, err)
	assert.Equal(t, []int64{2, 9}, ids)

	require.NoError(t, attrs.Clear(ctx))
	ids, err = attrs.PagesWith(ctx, "topic", "space")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAttributeIndex_NilDB(t *testing.T) {
	_, err := NewAttributeIndex(nil)
	require.Error(t, err)
}

func TestOpenMetaDB_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	db, err := OpenMetaDB(dir)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, filepath.Join(dir, MetaDBName))
}

func TestNewIndex_UnknownBackend(t *testing.T) {
	_, err := NewIndex("", "mysql")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestDetectBackend(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", DetectBackend(dir))

	idx, err := NewIndex(dir, BackendBleve)
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	assert.Equal(t, BackendBleve, DetectBackend(dir))

	idx, err = NewIndex(dir, BackendSQLite)
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	assert.Equal(t, BackendSQLite, DetectBackend(dir))
}

func TestNewSQLiteIndex_RecoversFromCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0644))

	idx, err := NewSQLiteIndex(path)

	require.NoError(t, err)
	defer idx.Close()
	ids, err := idx.AllIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAttributeIndex_PruneKeepsOnlyListedPages(t *testing.T) {
	attrs := newAttributeIndex(t)
	ctx := context.Background()

	// Given: attributes for three pages
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, attrs.ReindexPage(ctx, &content.Page{ID: id, Attributes: map[string]string{"topic": "space"}}))
	}

	// When: pruning to pages 1 and 3
	require.NoError(t, attrs.Prune(ctx, []int64{1, 3, 99}))

	// Then: page 2 is gone and the others are untouched
	ids, err := attrs.PagesWith(ctx, "topic", "space")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	// And: pruning to nothing empties the table
	require.NoError(t, attrs.Prune(ctx, nil))
	ids, err = attrs.PagesWith(ctx, "topic", "space")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
