package reactive

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error is returned by every failing Session operation.
//
// Errors are never recovered internally: construction problems, caller
// mistakes and compute failures all surface to the caller with a stable Code
// so tests can assert on the exact failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the node the failing operation targeted, if any.
	Node string

	// Input names the source node involved (unknown or unset input).
	Input string

	// Path is the dependency cycle for GRAPH_CYCLE errors: ["a", "b", "a"].
	Path []string

	// Err is the underlying cause (compute errors, recovered panics).
	Err error
}

// ErrorCode categorizes harness errors.
type ErrorCode string

const (
	// ErrCodeGraphCycle indicates the dependency graph is not a DAG.
	ErrCodeGraphCycle ErrorCode = "GRAPH_CYCLE"

	// ErrCodeUnknownInput indicates SetInputs named something that is not a source node.
	ErrCodeUnknownInput ErrorCode = "UNKNOWN_INPUT"

	// ErrCodeUnresolvedInput indicates a required source node is still unset.
	ErrCodeUnresolvedInput ErrorCode = "UNRESOLVED_INPUT"

	// ErrCodeNegativeElapse indicates an attempt to move the virtual clock backwards.
	ErrCodeNegativeElapse ErrorCode = "NEGATIVE_ELAPSE"

	// ErrCodeClockOverflow indicates an advance past the largest representable virtual time.
	ErrCodeClockOverflow ErrorCode = "CLOCK_OVERFLOW"

	// ErrCodeUnknownNode indicates a reference to an undeclared node.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"

	// ErrCodeInvalidGraph indicates a malformed definition (duplicate names, bad options).
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"

	// ErrCodeNotAnOutput indicates ReadOutput was called on a node that is not an output sink.
	ErrCodeNotAnOutput ErrorCode = "NOT_AN_OUTPUT"

	// ErrCodeComputeFailed indicates a compute or render function returned an error or panicked.
	ErrCodeComputeFailed ErrorCode = "COMPUTE_FAILED"

	// ErrCodeReentrantCall indicates a session call made from inside a compute function.
	ErrCodeReentrantCall ErrorCode = "REENTRANT_CALL"

	// ErrCodeSessionClosed indicates the session was already torn down.
	ErrCodeSessionClosed ErrorCode = "SESSION_CLOSED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Node != "" {
		fmt.Fprintf(&b, " (node=%s", e.Node)
		if e.Input != "" && e.Input != e.Node {
			fmt.Fprintf(&b, ", input=%s", e.Input)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode of err, or "" if err is not a harness error.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsCycleError reports whether err is a GRAPH_CYCLE error.
func IsCycleError(err error) bool {
	return CodeOf(err) == ErrCodeGraphCycle
}

// IsUnknownInputError reports whether err is an UNKNOWN_INPUT error.
func IsUnknownInputError(err error) bool {
	return CodeOf(err) == ErrCodeUnknownInput
}

// IsUnresolvedInputError reports whether err is an UNRESOLVED_INPUT error.
func IsUnresolvedInputError(err error) bool {
	return CodeOf(err) == ErrCodeUnresolvedInput
}

// IsNegativeElapseError reports whether err is a NEGATIVE_ELAPSE error.
func IsNegativeElapseError(err error) bool {
	return CodeOf(err) == ErrCodeNegativeElapse
}

// NewCycleError creates an Error for a dependency cycle.
func NewCycleError(path []string) *Error {
	return &Error{
		Code:    ErrCodeGraphCycle,
		Message: "dependency cycle: " + strings.Join(path, " → "),
		Path:    path,
	}
}

// NewUnknownInputError creates an Error for a SetInputs name that is not a source node.
func NewUnknownInputError(name string) *Error {
	return &Error{
		Code:    ErrCodeUnknownInput,
		Message: fmt.Sprintf("%q is not a declared input", name),
		Input:   name,
	}
}

// NewUnresolvedInputError creates an Error for a read that needs an unset source.
func NewUnresolvedInputError(node, input string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedInput,
		Message: fmt.Sprintf("input %q has no value", input),
		Node:    node,
		Input:   input,
	}
}

// NewNegativeElapseError creates an Error for a negative clock advance.
func NewNegativeElapseError(d time.Duration) *Error {
	return &Error{
		Code:    ErrCodeNegativeElapse,
		Message: fmt.Sprintf("cannot elapse negative duration %s", d),
	}
}

// NewClockOverflowError creates an Error for an advance beyond the clock's range.
func NewClockOverflowError(now, d time.Duration) *Error {
	return &Error{
		Code:    ErrCodeClockOverflow,
		Message: fmt.Sprintf("cannot elapse %s from %s: virtual time would overflow", d, now),
	}
}

func newUnknownNodeError(node string) *Error {
	return &Error{
		Code:    ErrCodeUnknownNode,
		Message: fmt.Sprintf("no node named %q", node),
		Node:    node,
	}
}

func newInvalidGraphError(node, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidGraph,
		Message: fmt.Sprintf(format, args...),
		Node:    node,
	}
}

func newComputeError(node string, err error) *Error {
	return &Error{
		Code:    ErrCodeComputeFailed,
		Message: "compute failed",
		Node:    node,
		Err:     err,
	}
}
