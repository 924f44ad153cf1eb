package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupConfig_NoFile_ReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectConfigName)

	backup, err := BackupConfig(path)

	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupConfig_CopiesContent(t *testing.T) {
	// Given: an existing config
	path := filepath.Join(t.TempDir(), ProjectConfigName)
	require.NoError(t, os.WriteFile(path, []byte("index:\n  workers: 2\n"), 0644))

	// When: backing up
	backup, err := BackupConfig(path)

	// Then: the backup has identical content
	require.NoError(t, err)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "index:\n  workers: 2\n", string(data))

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Equal(t, []string{backup}, backups)
}

func TestCleanupOldBackups_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigName)
	for _, ts := range []string{"20250101-000000.000", "20250102-000000.000", "20250103-000000.000", "20250104-000000.000", "20250105-000000.000"} {
		require.NoError(t, os.WriteFile(path+BackupSuffix+"."+ts, []byte("x"), 0644))
	}

	require.NoError(t, cleanupOldBackups(path))

	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, path+BackupSuffix+".20250105-000000.000", backups[0])
}

func TestRestoreConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigName)
	backupPath := filepath.Join(dir, "saved.yaml")
	require.NoError(t, os.WriteFile(backupPath, []byte("index:\n  backend: bleve\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("index:\n  backend: sqlite\n"), 0644))

	require.NoError(t, RestoreConfig(path, backupPath))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bleve")

	// The replaced config was itself backed up
	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRestoreConfig_MissingBackup(t *testing.T) {
	err := RestoreConfig(filepath.Join(t.TempDir(), ProjectConfigName), "/nonexistent/backup")
	require.Error(t, err)
}
