package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLock_TryLockAndUnlock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	lock := NewJobLock(dir)

	// When: acquiring in a directory that does not exist yet
	ok, err := lock.TryLock()

	// Then: the directory is created and the lock held
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, lock.IsLocked())
	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())

	running, err := IsRunning(dir)
	require.NoError(t, err)
	assert.True(t, running)

	// And: a second lock cannot be taken
	second := NewJobLock(dir)
	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Unlock())
	assert.False(t, lock.IsLocked())

	running, err = IsRunning(dir)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestJobLock_UnlockWithoutLock(t *testing.T) {
	lock := NewJobLock(t.TempDir())

	assert.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}

func TestIsRunning_NoLockFile(t *testing.T) {
	running, err := IsRunning(t.TempDir())

	require.NoError(t, err)
	assert.False(t, running)
}
