package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const specsDir = "testdata/specs"

// specFile returns the absolute path of the shared test apps.
func specFile(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join(specsDir, "apps.cue"))
	require.NoError(t, err)
	return path
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// passingScenario is a calc scenario whose steps all succeed.
func passingScenario(t *testing.T, name string) string {
	return fmt.Sprintf(`name: %s
description: "resolves the chain"
spec: %s
app: calc
steps:
  - set: { x: 10, y: 4, z: 1 }
  - read: xyz
    expect: 30
  - output: out
    expect: "Result: 30"
assertions:
  - type: recompute_count
    node: xy
    count: 1
`, name, specFile(t))
}

// failingScenario expects a value calc never produces.
func failingScenario(t *testing.T, name string) string {
	return fmt.Sprintf(`name: %s
description: "wrong expectation"
spec: %s
app: calc
steps:
  - set: { x: 10, y: 4, z: 1 }
  - read: xyz
    expect: 31
`, name, specFile(t))
}

// execute runs a command with args, returning stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
