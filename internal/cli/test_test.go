package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testResponse is the JSON envelope of the test command.
type testResponse struct {
	Status string     `json:"status"`
	Data   TestResult `json:"data"`
	Error  *CLIError  `json:"error"`
}

func runTestJSON(t *testing.T, args ...string) (testResponse, error) {
	t.Helper()
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), args...)
	var resp testResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

// calcScenario sets x and checks the resulting xyz (y=4, z=1).
func calcScenario(t *testing.T, name string, x int) string {
	return fmt.Sprintf(`name: %s
description: "calc with x=%d"
spec: %s
app: calc
steps:
  - set: { x: %d, y: 4, z: 1 }
  - read: xyz
    expect: %d
`, name, x, specFile(t), x, (x-4)*5)
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s), received 0")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
	assert.Contains(t, out, "failed to find scenarios")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	resp, err := runTestJSON(t, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "calc_pass.yaml", passingScenario(t, "calc_pass"))

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ calc_pass")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_pass.yaml", passingScenario(t, "a_pass"))
	writeFile(t, dir, "b_fail.yaml", failingScenario(t, "b_fail"))

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "✓ a_pass")
	assert.Contains(t, out, "✗ b_fail")
	assert.Contains(t, out, "step 2 (read) xyz: value mismatch")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
	assert.NotContains(t, out, "All scenarios passed")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_fail.yaml", failingScenario(t, "b_fail"))

	resp, err := runTestJSON(t, dir)
	require.Error(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandInvalidScenarioFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nbogus_field: 1\n")

	resp, err := runTestJSON(t, dir)
	require.Error(t, err)
	require.Len(t, resp.Data.Scenarios, 1)
	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "broken.yaml", sr.Name)
	assert.False(t, sr.Pass)
	require.Len(t, sr.Errors, 1)
	assert.Contains(t, sr.Errors[0], "failed to load scenario")
}

func TestTestCommandBuildErrorScenario(t *testing.T) {
	dir := t.TempDir()
	spec := writeFile(t, dir, "specs/loop.cue", cycleSpec)
	writeFile(t, dir, "loop.yaml", fmt.Sprintf(`name: loop
description: "cycle is rejected"
spec: %s
expect_build_error: GRAPH_CYCLE
`, spec))

	resp, err := runTestJSON(t, dir)
	require.NoError(t, err)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Digest)
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "calc_pass.yaml", passingScenario(t, "calc_pass"))
	writeFile(t, dir, "other_fail.yaml", failingScenario(t, "other_fail"))

	resp, err := runTestJSON(t, dir, "--filter", "calc")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "calc_pass", resp.Data.Scenarios[0].Name)
}

func TestTestCommandParallelKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var want []string
	for i := range 8 {
		name := fmt.Sprintf("calc_%02d", i)
		writeFile(t, dir, name+".yaml", calcScenario(t, name, 10+i))
		want = append(want, name)
	}

	resp, err := runTestJSON(t, dir, "--parallel", "4")
	require.NoError(t, err)
	assert.Equal(t, 8, resp.Data.Passed)

	var got []string
	for _, sr := range resp.Data.Scenarios {
		got = append(got, sr.Name)
	}
	assert.Equal(t, want, got)
}

func TestTestCommandParallelVerbose(t *testing.T) {
	dir := t.TempDir()
	for i := range 6 {
		name := fmt.Sprintf("calc_%02d", i)
		writeFile(t, dir, name+".yaml", calcScenario(t, name, 10+i))
	}

	errOut := &bytes.Buffer{}
	opts := &RootOptions{Format: "json", Verbose: true, Logger: newLogger(errOut, true)}
	cmd := NewTestCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{dir, "--parallel", "3"})

	require.NoError(t, cmd.Execute())
	for i := range 6 {
		assert.Contains(t, errOut.String(), fmt.Sprintf("calc_%02d.yaml", i))
	}
	assert.Equal(t, 6, strings.Count(errOut.String(), "running scenario"))
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "calc_pass.yaml", passingScenario(t, "calc_pass"))
	goldenPath := filepath.Join(dir, "golden", "calc_pass.golden")

	t.Run("no golden yet", func(t *testing.T) {
		resp, err := runTestJSON(t, dir)
		require.NoError(t, err)
		assert.Equal(t, GoldenNone, resp.Data.Scenarios[0].Golden)
		assert.NoFileExists(t, goldenPath)
	})

	t.Run("update writes golden", func(t *testing.T) {
		out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ calc_pass (golden updated)")
		require.FileExists(t, goldenPath)

		data, err := os.ReadFile(goldenPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"scenario":"calc_pass"`)
	})

	t.Run("golden matches", func(t *testing.T) {
		resp, err := runTestJSON(t, dir)
		require.NoError(t, err)
		assert.Equal(t, GoldenMatch, resp.Data.Scenarios[0].Golden)
	})

	t.Run("golden mismatch fails", func(t *testing.T) {
		require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario":"calc_pass","trace":[]}`), 0o644))

		resp, err := runTestJSON(t, dir)
		require.Error(t, err)
		sr := resp.Data.Scenarios[0]
		assert.False(t, sr.Pass)
		assert.Equal(t, GoldenMismatch, sr.Golden)
		assert.Contains(t, sr.Errors[len(sr.Errors)-1], "does not match")
	})
}

func TestTestCommandRecordsRuns(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	writeFile(t, dir, "calc_pass.yaml", passingScenario(t, "calc_pass"))

	first, err := runTestJSON(t, dir, "--db", dbPath)
	require.NoError(t, err)
	second, err := runTestJSON(t, dir, "--db", dbPath)
	require.NoError(t, err)

	a, b := first.Data.Scenarios[0], second.Data.Scenarios[0]
	assert.NotEmpty(t, a.RunID)
	assert.NotEmpty(t, b.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Digest, b.Digest)
	assert.False(t, b.Drift)
	assert.Equal(t, 0, second.Data.Drifted)
}

func TestTestCommandReportsDrift(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	scenarioPath := writeFile(t, dir, "calc.yaml", calcScenario(t, "calc", 10))

	_, err := runTestJSON(t, dir, "--db", dbPath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(scenarioPath, []byte(calcScenario(t, "calc", 12)), 0o644))
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--db", dbPath)

	// Drift is reported but does not fail the run.
	require.NoError(t, err)
	assert.Contains(t, out, "✓ calc")
	assert.Contains(t, out, "digest drift")
	assert.Contains(t, out, "1 scenario(s) drifted")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "calc.golden"), goldenFilePath(filepath.Join("a", "b", "calc.yaml")))
	assert.Equal(t, filepath.Join("golden", "x.golden"), goldenFilePath("x.yml"))
}
