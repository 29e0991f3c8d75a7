package harness

import "time"

// Trace event kinds. Session events (set, recompute, fire, arm) come from the
// session observer; step events (elapse, read, output, dirty, error) record
// what the scenario did and observed.
const (
	EventSet       = "set"
	EventRecompute = "recompute"
	EventFire      = "fire"
	EventArm       = "arm"
	EventElapse    = "elapse"
	EventRead      = "read"
	EventOutput    = "output"
	EventDirty     = "dirty"
	EventError     = "error"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Seq  int64         `json:"seq"`
	Step int           `json:"step"` // index into Scenario.Steps; -1 for session build
	Kind string        `json:"kind"`
	Node string        `json:"node,omitempty"`
	At   time.Duration `json:"at"` // virtual time

	// Value is the value set, computed or observed. Meaningful for every
	// kind but arm, fire and error.
	Value any `json:"value,omitempty"`

	// Code is the error code for EventError.
	Code string `json:"code,omitempty"`
}

// HasValue reports whether the event kind carries a value.
func (e TraceEvent) HasValue() bool {
	switch e.Kind {
	case EventArm, EventFire, EventError:
		return false
	default:
		return true
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every session and step event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Digest is the domain-separated hash of the canonical trace.
	// Equal digests across runs mean the scenario behaved identically.
	Digest string `json:"digest,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Recomputes returns the names of recomputed nodes in trace order.
func (r *Result) Recomputes() []string {
	var names []string
	for _, e := range r.Trace {
		if e.Kind == EventRecompute {
			names = append(names, e.Node)
		}
	}
	return names
}
