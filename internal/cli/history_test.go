package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryListsRunsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	writeFile(t, dir, "calc_pass.yaml", passingScenario(t, "calc_pass"))

	first, err := runTestJSON(t, dir, "--db", dbPath)
	require.NoError(t, err)
	second, err := runTestJSON(t, dir, "--db", dbPath)
	require.NoError(t, err)

	out, _, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}), "calc_pass", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "calc_pass", resp.Data.Scenario)
	require.Len(t, resp.Data.Runs, 2)
	assert.Equal(t, second.Data.Scenarios[0].RunID, resp.Data.Runs[0].ID)
	assert.Equal(t, first.Data.Scenarios[0].RunID, resp.Data.Runs[1].ID)
	assert.True(t, resp.Data.Runs[0].Pass)
}

func TestHistoryText(t *testing.T) {
	dbPath, runID := recordRun(t)

	out, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "calc_pass")
	assert.Contains(t, out, "PASS")
}

func TestHistoryLimit(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	writeFile(t, dir, "calc_pass.yaml", passingScenario(t, "calc_pass"))
	for range 3 {
		_, err := runTestJSON(t, dir, "--db", dbPath)
		require.NoError(t, err)
	}

	out, _, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}), "--db", dbPath, "-n", "2")
	require.NoError(t, err)

	var resp struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Runs, 2)
}

func TestHistoryUnknownScenario(t *testing.T) {
	dbPath, _ := recordRun(t)

	out, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "nope", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestHistoryRequiresDatabase(t *testing.T) {
	_, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
