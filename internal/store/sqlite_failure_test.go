package store

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockIndex(t *testing.T) (*SQLiteIndex, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").WillReturnResult(sqlmock.NewResult(0, 0))
	idx, err := newSQLiteIndexFromDB(db, "")
	require.NoError(t, err)
	return idx, mock
}

func TestSQLiteIndex_SchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("no such module: fts5"))

	_, err = newSQLiteIndexFromDB(db, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize schema")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteIndex_TruncateFailureReleasesRebuild(t *testing.T) {
	idx, mock := newMockIndex(t)
	ctx := context.Background()

	// Given: the engine rejects the truncate
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM page_search_index").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	// When: starting a rebuild
	_, err := idx.Rebuild(ctx, RebuildOptions{})

	// Then: the error surfaces
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to truncate search index")

	// And: a later rebuild is not blocked
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM page_search_index").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO page_search_index").WillReturnError(errors.New("database is locked"))

	rb, err := idx.Rebuild(ctx, RebuildOptions{})
	require.NoError(t, err)
	err = rb.Insert(ctx, &Entry{PageID: 7, Path: "/x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to index page 7")
	require.NoError(t, rb.Rollback())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteIndex_AtomicCommitFailure(t *testing.T) {
	idx, mock := newMockIndex(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM page_search_index").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT OR REPLACE INTO index_meta").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	rb, err := idx.Rebuild(ctx, RebuildOptions{Atomic: true})
	require.NoError(t, err)

	err = rb.Commit()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit rebuild")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteIndex_SearchEngineFailure(t *testing.T) {
	idx, mock := newMockIndex(t)
	expr, err := ParseBoolean("moon")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnError(errors.New("database disk image is malformed"))

	_, err = idx.Search(context.Background(), Query{Keywords: expr})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search count failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteIndex_FTSSyntaxErrorIsNoResults(t *testing.T) {
	idx, mock := newMockIndex(t)
	expr, err := ParseBoolean("moon")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnError(errors.New(`fts5: syntax error near "moon"`))

	page, err := idx.Search(context.Background(), Query{Keywords: expr})

	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Equal(t, 0, page.Total)
}

func TestSQLiteIndex_SearchBindsPathPrefixes(t *testing.T) {
	idx, mock := newMockIndex(t)
	expr, err := ParseBoolean("moon")
	require.NoError(t, err)

	// Then: keywords and prefixes are bound, never spliced into SQL
	mock.ExpectQuery(`instr\(i.path, \?\) = 1 OR instr\(i.path, \?\) = 1`).
		WithArgs(`"moon"`, "/a", "/b%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY score DESC, i.date_public DESC, i.page_id ASC`).
		WithArgs(`"moon"`, "/a", "/b%", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"page_id", "name", "description", "path", "date_public", "content", "score"}).
			AddRow(int64(3), "Moon", "", "/a/moon", "2021-01-01 00:00:00", "moon", 1.5))

	page, err := idx.Search(context.Background(), Query{
		Keywords:     expr,
		PathPrefixes: []string{"/a", "/b%"},
		Offset:       20,
		Limit:        10,
	})

	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(3), page.Results[0].PageID)
	assert.Equal(t, 1.5, page.Results[0].Score)
	assert.Equal(t, 2021, page.Results[0].DatePublic.Year())
	assert.Equal(t, 1, page.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}
