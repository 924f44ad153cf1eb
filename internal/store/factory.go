package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnknownBackend is returned for a backend name other than sqlite or bleve.
var ErrUnknownBackend = errors.New("unknown search backend")

// indexBaseName is the file name (without extension) of the page index
// inside the data directory.
const indexBaseName = "search"

// NewIndex opens the page index for backend inside dataDir:
//
//   - "sqlite" (default): <dataDir>/search.db
//   - "bleve": <dataDir>/search.bleve/
//
// An empty dataDir creates an in-memory index.
func NewIndex(dataDir, backend string) (Index, error) {
	switch backend {
	case BackendSQLite, "":
		var path string
		if dataDir != "" {
			path = IndexPath(dataDir, BackendSQLite)
		}
		return NewSQLiteIndex(path)

	case BackendBleve:
		var path string
		if dataDir != "" {
			path = IndexPath(dataDir, BackendBleve)
		}
		return NewBleveIndex(path)

	default:
		return nil, fmt.Errorf("%w: %s (valid options: sqlite, bleve)", ErrUnknownBackend, backend)
	}
}

// DetectBackend reports which backend an existing index in dataDir uses, or
// "" when there is none. SQLite wins when both exist.
func DetectBackend(dataDir string) string {
	if fileExists(IndexPath(dataDir, BackendSQLite)) {
		return BackendSQLite
	}
	if dirExists(IndexPath(dataDir, BackendBleve)) {
		return BackendBleve
	}
	return ""
}

// IndexPath returns the index file or directory for backend.
func IndexPath(dataDir, backend string) string {
	basePath := filepath.Join(dataDir, indexBaseName)
	switch backend {
	case BackendBleve:
		return basePath + ".bleve"
	default:
		return basePath + ".db"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
