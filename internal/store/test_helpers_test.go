package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/reactest/internal/testutil"
)

// createTestStore creates a new file-backed store with predictable run IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewFixedIDs("")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestRun creates a run with minimal required fields.
func createTestRun(scenario, digest string, pass bool) Run {
	return Run{
		Scenario:  scenario,
		App:       "calc",
		SpecPath:  "testdata/apps.cue",
		Pass:      pass,
		Digest:    digest,
		StartedAt: testStart,
	}
}
