package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/reactest/internal/ir"
	"github.com/roach88/reactest/internal/reactive"
)

// AssertionContext is what assertions can inspect once all steps ran.
type AssertionContext struct {
	Session *reactive.Session
	Trace   []TraceEvent
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Node     string       // Node under test, if any
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Diff     string       // cmp diff for value mismatches
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	if e.Node != "" {
		fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Type, e.Node)
	} else {
		fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	}
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "  Diff (-want +got):\n%s", e.Diff)
	}

	var recomputes []string
	for _, event := range e.Trace {
		if event.Kind == EventRecompute || event.Kind == EventFire {
			recomputes = append(recomputes, fmt.Sprintf("  [%d] %s %s @%s", event.Seq, event.Kind, event.Node, event.At))
		}
	}
	if len(recomputes) > 0 {
		fmt.Fprintf(&buf, "\nRecomputes and fires:\n%s\n", strings.Join(recomputes, "\n"))
	}

	return buf.String()
}

// assertRecomputeCount checks the number of times a node's compute function ran.
func assertRecomputeCount(actx *AssertionContext, a Assertion) error {
	got, err := actx.Session.Computations(a.Node)
	if err != nil {
		return err
	}
	if got != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Node:     a.Node,
			Expected: fmt.Sprintf("%d recomputes", *a.Count),
			Actual:   fmt.Sprintf("%d recomputes", got),
			Trace:    actx.Trace,
		}
	}
	return nil
}

// assertFireCount checks the number of timer or debounce fires of a node.
func assertFireCount(actx *AssertionContext, a Assertion) error {
	got, err := actx.Session.Fires(a.Node)
	if err != nil {
		return err
	}
	if got != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Node:     a.Node,
			Expected: fmt.Sprintf("%d fires", *a.Count),
			Actual:   fmt.Sprintf("%d fires", got),
			Trace:    actx.Trace,
		}
	}
	return nil
}

// assertRecomputeOrder checks that the listed nodes were first recomputed in
// the given order. Other nodes may recompute in between.
func assertRecomputeOrder(actx *AssertionContext, a Assertion) error {
	var order []string
	for _, event := range actx.Trace {
		if event.Kind == EventRecompute && !slices.Contains(order, event.Node) {
			order = append(order, event.Node)
		}
	}

	positions := make([]int, len(a.Nodes))
	for i, name := range a.Nodes {
		positions[i] = slices.Index(order, name)
		if positions[i] < 0 {
			return &AssertionError{
				Type:     a.Type,
				Node:     name,
				Expected: fmt.Sprintf("order %v", a.Nodes),
				Actual:   fmt.Sprintf("%s never recomputed (order %v)", name, order),
				Trace:    actx.Trace,
			}
		}
		if i > 0 && positions[i] < positions[i-1] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("order %v", a.Nodes),
				Actual:   fmt.Sprintf("%s recomputed before %s (order %v)", name, a.Nodes[i-1], order),
				Trace:    actx.Trace,
			}
		}
	}
	return nil
}

// assertFinalValue resolves a node after all steps and compares its value.
// Outputs compare their rendered artifact.
func assertFinalValue(actx *AssertionContext, a Assertion) error {
	got, err := finalValue(actx.Session, a.Node)
	if err != nil {
		return err
	}
	if !ir.EqualGo(a.Expect.Value, got) {
		return &AssertionError{
			Type:     a.Type,
			Node:     a.Node,
			Expected: fmt.Sprintf("%v", a.Expect.Value),
			Actual:   fmt.Sprintf("%v", got),
			Diff:     cmp.Diff(a.Expect.Value, got),
			Trace:    actx.Trace,
		}
	}
	return nil
}

func finalValue(s *reactive.Session, name string) (any, error) {
	for _, info := range s.Nodes() {
		if info.Name == name && info.Kind == reactive.KindOutput {
			return s.ReadOutput(name)
		}
	}
	return s.Read(name)
}

// EvaluateAssertions runs every assertion and returns one message per failure.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRecomputeCount:
			err = assertRecomputeCount(actx, a)
		case AssertRecomputeOrder:
			err = assertRecomputeOrder(actx, a)
		case AssertFireCount:
			err = assertFireCount(actx, a)
		case AssertFinalValue:
			err = assertFinalValue(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}
	return errs
}
