package reactive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(dep string) ComputeFunc {
	return func(v Values) (any, error) { return v.Get(dep), nil }
}

func cyclePathOf(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsCycleError(err), "expected GRAPH_CYCLE, got %v", err)
	var re *Error
	require.True(t, errors.As(err, &re))
	return re.Path
}

func TestNew_TwoNodeCycle(t *testing.T) {
	s, err := New(func(b *Builder) {
		b.Derived("a", []string{"b"}, identity("b"))
		b.Derived("b", []string{"a"}, identity("a"))
	})
	assert.Nil(t, s, "no partial session on failure")
	assert.Equal(t, []string{"a", "b", "a"}, cyclePathOf(t, err))
	assert.Contains(t, err.Error(), "a → b → a")
}

func TestNew_SelfLoop(t *testing.T) {
	_, err := New(func(b *Builder) {
		b.Derived("a", []string{"a"}, identity("a"))
	})
	assert.Equal(t, []string{"a", "a"}, cyclePathOf(t, err))
}

func TestNew_ThreeNodeCycle(t *testing.T) {
	_, err := New(func(b *Builder) {
		b.Derived("a", []string{"b"}, identity("b"))
		b.Derived("b", []string{"c"}, identity("c"))
		b.Derived("c", []string{"a"}, identity("a"))
	})
	assert.Equal(t, []string{"a", "b", "c", "a"}, cyclePathOf(t, err))
}

func TestNew_CycleBehindAcyclicPrefix(t *testing.T) {
	_, err := New(func(b *Builder) {
		b.Input("x")
		b.Derived("ok", []string{"x"}, identity("x"))
		b.Derived("p", []string{"x", "q"}, identity("q"))
		b.Derived("q", []string{"p"}, identity("p"))
	})
	// The path starts at the earliest-declared cycle member.
	assert.Equal(t, []string{"p", "q", "p"}, cyclePathOf(t, err))
}

func TestNew_CyclePathIsShortest(t *testing.T) {
	// a depends on b and c; c closes the loop directly, b only via c.
	_, err := New(func(b *Builder) {
		b.Derived("a", []string{"b", "c"}, identity("b"))
		b.Derived("b", []string{"c"}, identity("c"))
		b.Derived("c", []string{"a"}, identity("a"))
	})
	assert.Equal(t, []string{"a", "c", "a"}, cyclePathOf(t, err))
}

func TestNew_DiamondIsNotACycle(t *testing.T) {
	s, err := New(func(b *Builder) {
		b.Input("root")
		b.Derived("left", []string{"root"}, identity("root"))
		b.Derived("right", []string{"root"}, identity("root"))
		b.Derived("join", []string{"left", "right"}, identity("left"))
	})
	require.NoError(t, err)
	defer s.Close()

	heights := make(map[string]int)
	for _, info := range s.Nodes() {
		heights[info.Name] = info.Height
	}
	assert.Equal(t, map[string]int{"root": 0, "left": 1, "right": 1, "join": 2}, heights)
}

func TestNew_ForwardReferencesAllowed(t *testing.T) {
	s, err := New(func(b *Builder) {
		b.Derived("late", []string{"early"}, identity("early"))
		b.Input("early")
	})
	require.NoError(t, err)
	defer s.Close()

	var names []string
	for _, info := range s.Nodes() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"early", "late"}, names)
}
