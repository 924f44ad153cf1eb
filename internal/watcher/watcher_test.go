package watcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 16, opts.EventBufferSize)
	assert.Equal(t, []string{".yaml", ".yml"}, opts.Extensions)
	assert.False(t, opts.ForcePolling)
}

func TestOptions_WithDefaults(t *testing.T) {
	// Given: options with only the debounce window set
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	// Then: the set value is kept and the rest are filled
	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 16, opts.EventBufferSize)
	assert.Equal(t, []string{".git", ".pagesearch"}, opts.IgnoreDirs)
}

func TestFilter_MatchFile(t *testing.T) {
	defaults := DefaultOptions()
	dirFilter := filter{extensions: defaults.Extensions, ignoreDirs: defaults.IgnoreDirs}
	fileFilter := filter{file: "site.yaml"}

	tests := []struct {
		name string
		f    filter
		rel  string
		want bool
	}{
		{"yaml in root", dirFilter, "pages.yaml", true},
		{"yml nested", dirFilter, filepath.Join("blog", "posts.YML"), true},
		{"other extension", dirFilter, "notes.txt", false},
		{"data dir", dirFilter, filepath.Join(".pagesearch", "meta.yaml"), false},
		{"git dir", dirFilter, filepath.Join("a", ".git", "x.yaml"), false},
		{"root itself", dirFilter, ".", false},
		{"target file", fileFilter, "site.yaml", true},
		{"sibling of target", fileFilter, "other.yaml", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.matchFile(tt.rel))
		})
	}
}
