package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MetaDBName is the metadata database shared by the attribute index and
// query telemetry.
const MetaDBName = "meta.db"

// OpenMetaDB opens the metadata database in dataDir, or an in-memory one
// when dataDir is empty.
func OpenMetaDB(dataDir string) (*sql.DB, error) {
	dsn := ":memory:"
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dataDir, err)
		}
		params := make([]string, len(sqlitePragmas))
		for i, p := range sqlitePragmas {
			params[i] = "_pragma=" + p
		}
		dsn = filepath.Join(dataDir, MetaDBName) + "?" + strings.Join(params, "&")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	return db, nil
}
