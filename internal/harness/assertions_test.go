package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactest/internal/reactive"
)

// assertionContext builds a sum session, sets a=1 b=2 and resolves shown,
// recording the trace the way a scenario run would.
func assertionContext(t *testing.T) *AssertionContext {
	t.Helper()

	var trace []TraceEvent
	s := NewTestSession(t, sumDefinition, reactive.WithObserver(func(e reactive.Event) {
		trace = append(trace, TraceEvent{Seq: int64(len(trace) + 1), Kind: string(e.Kind), Node: e.Node, Value: e.Value})
	}))
	require.NoError(t, s.SetInputs(map[string]any{"a": 1, "b": 2}))
	_, err := s.ReadOutput("shown")
	require.NoError(t, err)

	return &AssertionContext{Session: s, Trace: trace}
}

func TestAssertRecomputeCount(t *testing.T) {
	actx := assertionContext(t)

	assert.NoError(t, assertRecomputeCount(actx, Assertion{Type: AssertRecomputeCount, Node: "sum", Count: count(1)}))

	err := assertRecomputeCount(actx, Assertion{Type: AssertRecomputeCount, Node: "sum", Count: count(2)})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "2 recomputes", aerr.Expected)
	assert.Equal(t, "1 recomputes", aerr.Actual)
}

func TestAssertRecomputeCount_UnknownNode(t *testing.T) {
	actx := assertionContext(t)

	err := assertRecomputeCount(actx, Assertion{Type: AssertRecomputeCount, Node: "nope", Count: count(0)})
	assert.Equal(t, reactive.ErrCodeUnknownNode, reactive.CodeOf(err))
}

func TestAssertFireCount(t *testing.T) {
	s := NewTestSession(t, func(b *reactive.Builder) {
		b.Derived("tick", nil, func(v reactive.Values) (any, error) {
			return v.Now().Milliseconds(), nil
		}, reactive.Every(100*time.Millisecond))
	})
	require.NoError(t, s.Elapse(350*time.Millisecond))
	actx := &AssertionContext{Session: s}

	assert.NoError(t, assertFireCount(actx, Assertion{Type: AssertFireCount, Node: "tick", Count: count(3)}))

	err := assertFireCount(actx, Assertion{Type: AssertFireCount, Node: "tick", Count: count(0)})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "3 fires", aerr.Actual)
}

func TestAssertRecomputeOrder(t *testing.T) {
	actx := assertionContext(t)

	tests := []struct {
		name    string
		nodes   []string
		wantErr string
	}{
		{name: "full order", nodes: []string{"sum", "shown"}},
		{name: "single node", nodes: []string{"shown"}},
		{name: "reversed", nodes: []string{"shown", "sum"}, wantErr: "sum recomputed before shown"},
		{name: "never recomputed", nodes: []string{"sum", "a"}, wantErr: "a never recomputed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertRecomputeOrder(actx, Assertion{Type: AssertRecomputeOrder, Nodes: tt.nodes})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertRecomputeOrder_InterveningNodesAllowed(t *testing.T) {
	actx := &AssertionContext{Trace: []TraceEvent{
		{Kind: EventRecompute, Node: "a"},
		{Kind: EventRecompute, Node: "b"},
		{Kind: EventRecompute, Node: "c"},
		{Kind: EventRecompute, Node: "a"},
	}}

	assert.NoError(t, assertRecomputeOrder(actx, Assertion{Type: AssertRecomputeOrder, Nodes: []string{"a", "c"}}))
	// Only first occurrences count: the second a does not place it after c.
	assert.Error(t, assertRecomputeOrder(actx, Assertion{Type: AssertRecomputeOrder, Nodes: []string{"c", "a"}}))
}

func TestAssertFinalValue(t *testing.T) {
	actx := assertionContext(t)

	assert.NoError(t, assertFinalValue(actx, Assertion{Type: AssertFinalValue, Node: "sum", Expect: Expect(3)}))
	assert.NoError(t, assertFinalValue(actx, Assertion{Type: AssertFinalValue, Node: "shown", Expect: Expect("sum=3")}))
	assert.NoError(t, assertFinalValue(actx, Assertion{Type: AssertFinalValue, Node: "a", Expect: Expect(1.0)}))

	err := assertFinalValue(actx, Assertion{Type: AssertFinalValue, Node: "shown", Expect: Expect("sum=4")})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "sum=4", aerr.Expected)
	assert.Equal(t, "sum=3", aerr.Actual)
	assert.NotEmpty(t, aerr.Diff)
}

func TestEvaluateAssertions(t *testing.T) {
	actx := assertionContext(t)

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertRecomputeCount, Node: "sum", Count: count(1)},
		{Type: AssertRecomputeCount, Node: "shown", Count: count(5)},
		{Type: AssertFinalValue, Node: "sum", Expect: Expect(3)},
		{Type: "bogus"},
	}, actx)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion 2:")
	assert.Contains(t, errs[0], "recompute_count shown")
	assert.Equal(t, "assertion 4: unknown assertion type: bogus", errs[1])
}

func TestEvaluateAssertions_None(t *testing.T) {
	assert.Empty(t, EvaluateAssertions(nil, assertionContext(t)))
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFinalValue,
		Node:     "out",
		Expected: "Result: 30",
		Actual:   "Result: 31",
		Trace: []TraceEvent{
			{Seq: 1, Kind: EventSet, Node: "x"},
			{Seq: 2, Kind: EventRecompute, Node: "out"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: final_value out")
	assert.Contains(t, msg, "Expected: Result: 30")
	assert.Contains(t, msg, "Actual: Result: 31")
	assert.Contains(t, msg, "[2] recompute out @0s")
	assert.NotContains(t, msg, "[1] set")
}
