package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSite = `
default_theme: plain
themes:
  - {handle: plain, name: Plain}
pages:
  - id: 1
    name: Home
    path: /
    date_public: 2024-01-01T00:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 10, area: Main, type: content, fields: {content: "<p>Welcome to the garden</p>"}}
  - id: 2
    name: Tomatoes
    description: Growing guide
    path: /plants/tomatoes
    date_public: 2024-02-01T00:00:00Z
    versions:
      - id: 1
        approved: true
        blocks:
          - {id: 20, area: Main, type: content, fields: {content: "growing tomatoes in the garden"}}
  - id: 3
    name: Draft
    path: /draft
    versions:
      - id: 1
        approved: false
        blocks:
          - {id: 30, area: Main, type: content, fields: {content: "garden draft"}}
`

// newTestProject creates a site directory with a project config pointing
// at site.yaml. User-level config is isolated from the host.
func newTestProject(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{"NO_COLOR", "CI"} {
		t.Setenv(key, "1")
	}

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "site.yaml"), []byte(testSite), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".pagesearch.yaml"), []byte("content:\n  path: site.yaml\n"), 0644))
	return root
}

// execute runs the root command with args and returns everything written
// to stdout and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}
