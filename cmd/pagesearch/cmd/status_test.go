package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagesearch/internal/ui"
)

func TestStatusCmd_BeforeReindex(t *testing.T) {
	root := newTestProject(t)

	out, err := execute(t, "status", "--dir", root)

	require.NoError(t, err)
	assert.Contains(t, out, "(3 pages)")
	assert.Contains(t, out, "Last rebuild: never")
	assert.Contains(t, out, "idle")
}

func TestStatusCmd_JSON(t *testing.T) {
	// Given a reindexed project with two recorded queries
	root := reindexedProject(t)
	_, err := execute(t, "search", "--dir", root, "garden")
	require.NoError(t, err)
	_, err = execute(t, "search", "--dir", root, "cucumbers")
	require.NoError(t, err)

	// When reading the status as JSON
	out, err := execute(t, "status", "--dir", root, "--json")
	require.NoError(t, err)

	// Then documents and persisted query telemetry are reported
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info), out)
	assert.Equal(t, 3, info.Pages)
	assert.Equal(t, 2, info.Documents)
	assert.Equal(t, "sqlite", info.Backend)
	assert.False(t, info.LastRebuild.IsZero())
	assert.Equal(t, "idle", info.Reindex)
	assert.Equal(t, int64(2), info.TotalQueries)
	assert.Contains(t, info.ZeroResultQueries, "cucumbers")
}
