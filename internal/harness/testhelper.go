package harness

import (
	"testing"

	"github.com/roach88/reactest/internal/reactive"
)

// NewTestSession builds a session for a Go test. Construction errors fail the
// test immediately; the session is closed when the test ends.
func NewTestSession(t testing.TB, def reactive.Definition, opts ...reactive.Option) *reactive.Session {
	t.Helper()

	s, err := reactive.New(def, opts...)
	if err != nil {
		t.Fatalf("build session: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
