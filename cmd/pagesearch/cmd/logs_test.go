package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	lines := []string{
		`{"time":"2026-10-17T10:00:00Z","level":"INFO","msg":"reindex_started","group_id":1}`,
		`{"time":"2026-10-17T10:00:01Z","level":"WARN","msg":"reindex_page_failed","page_id":7}`,
		`{"time":"2026-10-17T10:00:02Z","level":"INFO","msg":"search_complete","total":2}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "all entries",
			args: []string{"--file", path},
			want: []string{"reindex_started", "reindex_page_failed", "search_complete"},
		},
		{
			name:    "minimum level",
			args:    []string{"--file", path, "--level", "warn"},
			want:    []string{"reindex_page_failed page_id=7"},
			notWant: []string{"reindex_started", "search_complete"},
		},
		{
			name:    "event filter",
			args:    []string{"--file", path, "--event", "search"},
			want:    []string{"search_complete total=2"},
			notWant: []string{"reindex"},
		},
		{
			name:    "last line only",
			args:    []string{"--file", path, "-n", "1"},
			want:    []string{"search_complete"},
			notWant: []string{"reindex_started"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"logs", "--no-color"}, tt.args...)...)
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestLogsCmd_MissingFile(t *testing.T) {
	_, err := execute(t, "logs", "--file", filepath.Join(t.TempDir(), "missing.log"))

	assert.Error(t, err)
}
