package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/Aman-CERP/pagesearch/internal/content"
)

// AttributeIndex keeps a queryable copy of page attributes. It is refreshed
// page by page as the search index is rebuilt.
type AttributeIndex struct {
	db *sql.DB
}

// NewAttributeIndex creates the attribute table in db if needed.
func NewAttributeIndex(db *sql.DB) (*AttributeIndex, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	schema := `
	CREATE TABLE IF NOT EXISTS page_attribute_index (
		page_id  INTEGER NOT NULL,
		attr_key TEXT NOT NULL,
		value    TEXT NOT NULL,
		PRIMARY KEY (page_id, attr_key)
	);
	CREATE INDEX IF NOT EXISTS idx_page_attribute_key ON page_attribute_index(attr_key, value);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create attribute schema: %w", err)
	}
	return &AttributeIndex{db: db}, nil
}

// ReindexPage replaces the stored attributes of one page.
func (a *AttributeIndex) ReindexPage(ctx context.Context, page *content.Page) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_attribute_index WHERE page_id = ?`, page.ID); err != nil {
		return fmt.Errorf("failed to clear attributes of page %d: %w", page.ID, err)
	}

	keys := make([]string, 0, len(page.Attributes))
	for k := range page.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO page_attribute_index(page_id, attr_key, value) VALUES (?, ?, ?)`,
			page.ID, k, page.Attributes[k]); err != nil {
			return fmt.Errorf("failed to store attribute %s of page %d: %w", k, page.ID, err)
		}
	}
	return tx.Commit()
}

// Prune deletes the attributes of every page not in keep. It runs after a
// rebuild commits, so pages skipped or removed since the last run do not
// leave rows behind.
func (a *AttributeIndex) Prune(ctx context.Context, keep []int64) error {
	kept := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT page_id FROM page_attribute_index`)
	if err != nil {
		return fmt.Errorf("failed to list attribute pages: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan page id: %w", err)
		}
		if _, ok := kept[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to list attribute pages: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM page_attribute_index WHERE page_id = ?`, id); err != nil {
			return fmt.Errorf("failed to prune attributes of page %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// Attributes returns the stored attributes of a page.
func (a *AttributeIndex) Attributes(ctx context.Context, pageID int64) (map[string]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT attr_key, value FROM page_attribute_index WHERE page_id = ?`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		attrs[k] = v
	}
	return attrs, rows.Err()
}

// PagesWith returns the IDs of pages whose attribute key has value, in
// ascending order.
func (a *AttributeIndex) PagesWith(ctx context.Context, key, value string) ([]int64, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT page_id FROM page_attribute_index WHERE attr_key = ? AND value = ? ORDER BY page_id`, key, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan page id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes every stored attribute.
func (a *AttributeIndex) Clear(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM page_attribute_index`); err != nil {
		return fmt.Errorf("failed to clear attribute index: %w", err)
	}
	return nil
}
