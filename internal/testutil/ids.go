package testutil

import "fmt"

// FixedIDs generates predictable run IDs ("run-0001", "run-0002", ...) so
// store and CLI tests can name runs without depending on UUID generation.
type FixedIDs struct {
	prefix string
	seq    *Sequence
}

// NewFixedIDs creates a generator. An empty prefix defaults to "run".
func NewFixedIDs(prefix string) *FixedIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &FixedIDs{prefix: prefix, seq: NewSequence()}
}

// NewID returns the next ID. It never fails.
func (g *FixedIDs) NewID() (string, error) {
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq.Next()), nil
}
