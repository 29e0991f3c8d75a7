package store

import "time"

// Run is one recorded scenario execution.
type Run struct {
	// Seq is the insertion order, assigned by WriteRun.
	Seq int64 `json:"seq"`

	// ID is assigned by WriteRun when empty (UUIDv7 by default).
	ID string `json:"id"`

	Scenario  string    `json:"scenario"`
	App       string    `json:"app,omitempty"`
	SpecPath  string    `json:"spec_path,omitempty"`
	Pass      bool      `json:"pass"`
	Digest    string    `json:"digest"`
	Errors    []string  `json:"errors,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// TraceRow is one trace event of a run.
type TraceRow struct {
	Seq  int64         `json:"seq"`
	Step int           `json:"step"`
	Kind string        `json:"kind"`
	Node string        `json:"node,omitempty"`
	At   time.Duration `json:"at"`

	// Value is stored as canonical JSON. HasValue distinguishes a null value
	// from an event kind that carries none.
	Value    any    `json:"value,omitempty"`
	HasValue bool   `json:"-"`
	Code     string `json:"code,omitempty"`
}
