package reactive

import "time"

// EventKind identifies what happened inside a session.
type EventKind string

const (
	// EventSet is emitted for each source written by SetInputs.
	EventSet EventKind = "set"
	// EventRecompute is emitted each time a compute function runs successfully.
	EventRecompute EventKind = "recompute"
	// EventFire is emitted once per timer or debounce fire.
	EventFire EventKind = "fire"
	// EventArm is emitted when an upstream change (re)arms a debounce deadline.
	EventArm EventKind = "arm"
)

// Event is delivered synchronously to the observer registered with WithObserver.
type Event struct {
	Kind EventKind
	Node string
	At   time.Duration

	// Value is the new value for EventSet and EventRecompute.
	Value any

	// Rendered is the rendered artifact of an output recompute.
	Rendered string
}
