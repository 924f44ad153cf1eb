package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the reindex lock file inside the data directory.
const LockFileName = ".reindex.lock"

// JobLock is a cross-process lock held for the duration of a reindex, so
// the CLI, the MCP server and the watcher never rebuild the same index
// concurrently.
type JobLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewJobLock creates the lock for a data directory. The lock file is
// created at <dir>/.reindex.lock on first acquisition.
func NewJobLock(dir string) *JobLock {
	lockPath := filepath.Join(dir, LockFileName)
	return &JobLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another holder has it.
func (l *JobLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked JobLock.
func (l *JobLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *JobLock) Path() string {
	return l.path
}

// IsLocked returns true if this JobLock holds the lock.
func (l *JobLock) IsLocked() bool {
	return l.locked
}

// IsRunning reports whether some process holds the reindex lock of dir.
func IsRunning(dir string) (bool, error) {
	lockPath := filepath.Join(dir, LockFileName)
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return false, nil
	}
	probe := flock.New(lockPath)
	acquired, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to probe lock: %w", err)
	}
	if acquired {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
