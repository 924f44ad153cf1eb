package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPolling(t *testing.T, dir string) *PollingWatcher {
	t.Helper()
	w := NewPollingWatcher(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx, dir) }()

	// Wait for the baseline scan.
	time.Sleep(60 * time.Millisecond)
	return w
}

func nextEvent(t *testing.T, w *PollingWatcher) FileEvent {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for polling event")
	}
	return FileEvent{}
}

func TestPollingWatcher_DetectsCreation(t *testing.T) {
	// Given: an empty content directory being polled
	dir := t.TempDir()
	w := startPolling(t, dir)

	// When: a content file appears
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages.yaml"), []byte("pages: []\n"), 0o644))

	// Then: CREATE is reported
	event := nextEvent(t, w)
	assert.Equal(t, OpCreate, event.Operation)
	assert.Equal(t, "pages.yaml", event.Path)
	require.NoError(t, w.Stop())
}

func TestPollingWatcher_DetectsModificationAndDeletion(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(file, []byte("pages: []\n"), 0o644))
	w := startPolling(t, dir)

	require.NoError(t, os.WriteFile(file, []byte("pages:\n  - id: 1\n"), 0o644))
	assert.Equal(t, OpModify, nextEvent(t, w).Operation)

	require.NoError(t, os.Remove(file))
	assert.Equal(t, OpDelete, nextEvent(t, w).Operation)
}

func TestPollingWatcher_IgnoresNonContentFiles(t *testing.T) {
	// Given: a polled directory
	dir := t.TempDir()
	w := startPolling(t, dir)

	// When: unrelated files change, then a content file
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".pagesearch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pagesearch", "state.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "themes.yml"), []byte("x"), 0o644))

	// Then: only the content file is reported
	assert.Equal(t, "themes.yml", nextEvent(t, w).Path)
}

func TestPollingWatcher_InvalidPath(t *testing.T) {
	w := NewPollingWatcher(20 * time.Millisecond)

	err := w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
	require.NoError(t, w.Stop())
}

func TestPollingWatcher_ContextCancellation(t *testing.T) {
	w := NewPollingWatcher(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, t.TempDir()) }()
	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("polling did not stop")
	}
	_, ok := <-w.Events()
	assert.False(t, ok)
}
