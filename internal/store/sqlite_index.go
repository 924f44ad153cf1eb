package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const (
	// BackendSQLite selects the SQLite FTS5 engine.
	BackendSQLite = "sqlite"

	// dateLayout keeps date_public lexically sortable.
	dateLayout = "2006-01-02 15:04:05"

	metaLastRebuild = "last_rebuild"
)

// sqlitePragmas are applied to every connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"cache_size(-65536)",
	"temp_store(MEMORY)",
}

// SQLiteIndex implements Index on a regular table plus an external-content
// FTS5 table kept in sync by triggers.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool

	// rebuildSem admits one rebuild at a time.
	rebuildSem chan struct{}
}

var _ Index = (*SQLiteIndex)(nil)

// validateSQLiteIntegrity checks an existing index file before opening it.
// Returns nil for a missing file (it will be created).
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type IN ('table') AND name IN ('page_search_index', 'page_search_fts')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 2 {
		return fmt.Errorf("search tables missing")
	}

	return nil
}

// NewSQLiteIndex opens (or creates) a SQLite FTS5 page index at path.
// An empty path creates an in-memory index.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("search index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("sqlite_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		params := make([]string, len(sqlitePragmas))
		for i, p := range sqlitePragmas {
			params[i] = "_pragma=" + p
		}
		dsn = path + "?" + strings.Join(params, "&")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == "" {
		// An in-memory database lives and dies with its connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		for _, p := range sqlitePragmas {
			name, value, _ := strings.Cut(strings.TrimSuffix(p, ")"), "(")
			if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", name, value)); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to set pragma: %w", err)
			}
		}
	} else {
		// WAL lets readers keep the last committed snapshot while an
		// atomic rebuild holds the write transaction.
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(0)
	}

	idx, err := newSQLiteIndexFromDB(db, path)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func newSQLiteIndexFromDB(db *sql.DB, path string) (*SQLiteIndex, error) {
	idx := &SQLiteIndex{
		db:         db,
		path:       path,
		rebuildSem: make(chan struct{}, 1),
	}
	if err := idx.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS page_search_index (
		page_id     INTEGER PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		path        TEXT NOT NULL DEFAULT '',
		date_public TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_page_search_index_path ON page_search_index(path);

	-- Full-text view over the searchable columns; rows live in page_search_index.
	CREATE VIRTUAL TABLE IF NOT EXISTS page_search_fts USING fts5(
		name,
		description,
		content,
		content='page_search_index',
		content_rowid='page_id',
		tokenize='unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS page_search_index_ai AFTER INSERT ON page_search_index BEGIN
		INSERT INTO page_search_fts(rowid, name, description, content)
		VALUES (new.page_id, new.name, new.description, new.content);
	END;

	CREATE TRIGGER IF NOT EXISTS page_search_index_ad AFTER DELETE ON page_search_index BEGIN
		INSERT INTO page_search_fts(page_search_fts, rowid, name, description, content)
		VALUES ('delete', old.page_id, old.name, old.description, old.content);
	END;

	CREATE TABLE IF NOT EXISTS index_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func truncate(ctx context.Context, ex execer) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM page_search_index`); err != nil {
		return fmt.Errorf("failed to truncate search index: %w", err)
	}
	return nil
}

// Rebuild empties the index and returns a Rebuilder for the new contents.
func (s *SQLiteIndex) Rebuild(ctx context.Context, opts RebuildOptions) (Rebuilder, error) {
	select {
	case s.rebuildSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rb, err := s.startRebuild(ctx, opts)
	if err != nil {
		<-s.rebuildSem
		return nil, err
	}
	return rb, nil
}

func (s *SQLiteIndex) startRebuild(ctx context.Context, opts RebuildOptions) (*sqliteRebuilder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rb := &sqliteRebuilder{idx: s}

	if opts.Atomic {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := truncate(ctx, tx); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		rb.tx = tx
		rb.exec = tx
		return rb, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := truncate(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit truncate: %w", err)
	}
	rb.exec = s.db
	return rb, nil
}

type sqliteRebuilder struct {
	mu   sync.Mutex
	idx  *SQLiteIndex
	tx   *sql.Tx
	exec execer
	done bool
}

func (r *sqliteRebuilder) Insert(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return ErrRebuildFinished
	}
	if r.idx.isClosed() {
		return ErrClosed
	}

	_, err := r.exec.ExecContext(ctx,
		`INSERT INTO page_search_index(page_id, name, description, path, date_public, content)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.PageID, e.Name, e.Description, e.Path, formatDate(e.DatePublic), e.Content)
	if err != nil {
		return fmt.Errorf("failed to index page %d: %w", e.PageID, err)
	}
	return nil
}

func (r *sqliteRebuilder) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return ErrRebuildFinished
	}
	r.done = true
	defer func() { <-r.idx.rebuildSem }()

	if r.idx.isClosed() {
		if r.tx != nil {
			_ = r.tx.Rollback()
		}
		return ErrClosed
	}

	ctx := context.Background()
	_, err := r.exec.ExecContext(ctx,
		`INSERT OR REPLACE INTO index_meta(key, value) VALUES (?, ?)`,
		metaLastRebuild, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if r.tx != nil {
			_ = r.tx.Rollback()
		}
		return fmt.Errorf("failed to record rebuild time: %w", err)
	}

	if r.tx != nil {
		if err := r.tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit rebuild: %w", err)
		}
	}
	return nil
}

func (r *sqliteRebuilder) Rollback() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return nil
	}
	r.done = true
	defer func() { <-r.idx.rebuildSem }()

	if r.tx != nil {
		if err := r.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return fmt.Errorf("failed to roll back rebuild: %w", err)
		}
	}
	return nil
}

func (s *SQLiteIndex) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Search returns one page of entries matching the query.
func (s *SQLiteIndex) Search(ctx context.Context, q Query) (*ResultPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	match := q.Keywords.FTS5()
	if match == "" {
		return &ResultPage{Results: []*Result{}}, nil
	}

	where := "page_search_fts MATCH ?"
	args := []any{match}
	if len(q.PathPrefixes) > 0 {
		conds := make([]string, len(q.PathPrefixes))
		for i, prefix := range q.PathPrefixes {
			conds[i] = "instr(i.path, ?) = 1"
			args = append(args, prefix)
		}
		where += " AND (" + strings.Join(conds, " OR ") + ")"
	}

	from := `FROM page_search_fts f JOIN page_search_index i ON i.page_id = f.rowid WHERE ` + where

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		if isFTSSyntaxError(err) {
			return &ResultPage{Results: []*Result{}}, nil
		}
		return nil, fmt.Errorf("search count failed: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT i.page_id, i.name, i.description, i.path, i.date_public, i.content,
		-bm25(page_search_fts) AS score ` + from + `
		ORDER BY score DESC, i.date_public DESC, i.page_id ASC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		if isFTSSyntaxError(err) {
			return &ResultPage{Results: []*Result{}}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results := []*Result{}
	for rows.Next() {
		var (
			r    Result
			date string
		)
		if err := rows.Scan(&r.PageID, &r.Name, &r.Description, &r.Path, &date, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.DatePublic = parseDate(date)
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	return &ResultPage{Results: results, Total: total}, nil
}

// isFTSSyntaxError reports errors FTS5 raises for match strings it cannot
// parse. These are treated as no results.
func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") || strings.Contains(msg, "syntax error")
}

// Get returns the stored entry for pageID, or nil if it is not indexed.
func (s *SQLiteIndex) Get(ctx context.Context, pageID int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var (
		e    Entry
		date string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT page_id, name, description, path, date_public, content
		 FROM page_search_index WHERE page_id = ?`, pageID).
		Scan(&e.PageID, &e.Name, &e.Description, &e.Path, &date, &e.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d: %w", pageID, err)
	}
	e.DatePublic = parseDate(date)
	return &e, nil
}

// AllIDs returns every indexed page ID in ascending order.
func (s *SQLiteIndex) AllIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT page_id FROM page_search_index ORDER BY page_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query IDs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats returns index statistics.
func (s *SQLiteIndex) Stats(ctx context.Context) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	stats := &IndexStats{Backend: BackendSQLite, Path: s.path}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page_search_index`).Scan(&stats.DocumentCount); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	var last string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, metaLastRebuild).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	default:
		stats.LastRebuild, _ = time.Parse(time.RFC3339Nano, last)
	}
	return stats, nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
