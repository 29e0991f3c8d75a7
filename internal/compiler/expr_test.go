package compiler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactest/internal/reactive"
)

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		src      string
		expected []string
	}{
		{"x - y", []string{"x", "y"}},
		{"x + y * x", []string{"x", "y"}},
		{"len(items) > limit", []string{"items", "limit"}},
		{"user.name == wanted", []string{"user", "wanted"}},
		{"let t = x * 2; t + y", []string{"x", "y"}},
		{"elapsed / 1000", []string{"elapsed"}},
		{"true && nil == nil", []string{}},
		{"'literal'", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			ids, err := Identifiers(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestIdentifiers_SyntaxError(t *testing.T) {
	_, err := Identifiers("x +")
	assert.Error(t, err)
}

func loadApp(t *testing.T, name string) *AppSpec {
	t.Helper()
	apps, err := LoadFile(filepath.Join("testdata", "calc.cue"))
	require.NoError(t, err)
	app, err := FindApp(apps, name)
	require.NoError(t, err)
	return app
}

func TestDefinition_Calc(t *testing.T) {
	def, err := loadApp(t, "calc").Definition()
	require.NoError(t, err)

	s, err := reactive.New(def)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetInputs(map[string]any{"x": 1, "y": 1, "z": 1}))

	xy, err := s.Read("xy")
	require.NoError(t, err)
	assert.Equal(t, 0, xy)

	yz, err := s.Read("yz")
	require.NoError(t, err)
	assert.Equal(t, 2, yz)

	out, err := s.ReadOutput("out")
	require.NoError(t, err)
	assert.Equal(t, "Result: 0", out)
}

func TestDefinition_UnresolvedBeforeInputs(t *testing.T) {
	def, err := loadApp(t, "calc").Definition()
	require.NoError(t, err)

	s, err := reactive.New(def)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadOutput("out")
	assert.True(t, reactive.IsUnresolvedInputError(err))
}

func TestDefinition_ElapsedAndDebounce(t *testing.T) {
	def, err := loadApp(t, "clock").Definition()
	require.NoError(t, err)

	s, err := reactive.New(def)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetInputs(map[string]any{"query": "go"}))
	require.NoError(t, s.Elapse(250*time.Millisecond))

	// Both nodes compute lazily on this first read, at 250ms.
	status, err := s.ReadOutput("status")
	require.NoError(t, err)
	assert.Equal(t, "go @250", status)

	require.NoError(t, s.Elapse(50*time.Millisecond))
	status, err = s.ReadOutput("status")
	require.NoError(t, err)
	assert.Equal(t, "go @300", status)
}

func TestDefinition_CycleSurfacesAtSessionBuild(t *testing.T) {
	apps, err := CompileString(`
		app: loop: derived: {
			a: {expr: "b + 1"}
			b: {expr: "a + 1"}
		}
	`)
	require.NoError(t, err)

	def, err := apps[0].Definition()
	require.NoError(t, err)

	_, err = reactive.New(def)
	require.Error(t, err)
	assert.True(t, reactive.IsCycleError(err))
	assert.Contains(t, err.Error(), "a → b → a")
}

func TestDefinition_RuntimeErrorIsComputeFailure(t *testing.T) {
	apps, err := CompileString(`
		app: a: {
			inputs: x: {}
			derived: d: {expr: "x.missing.deeper"}
		}
	`)
	require.NoError(t, err)
	def, err := apps[0].Definition()
	require.NoError(t, err)

	s, err := reactive.New(def)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SetInputs(map[string]any{"x": 5}))

	_, err = s.Read("d")
	assert.Equal(t, reactive.ErrCodeComputeFailed, reactive.CodeOf(err))
}

func TestDefinition_RejectsInvalidApp(t *testing.T) {
	apps, err := CompileString(`
		app: a: derived: d: {expr: "ghost + 1"}
	`)
	require.NoError(t, err)

	_, err = apps[0].Definition()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrUnknownReference)
}

func TestDefinition_DefaultRender(t *testing.T) {
	apps, err := CompileString(`
		app: a: {
			inputs: n: {}
			outputs: o: {expr: "[n, n * 2]"}
		}
	`)
	require.NoError(t, err)
	def, err := apps[0].Definition()
	require.NoError(t, err)

	s, err := reactive.New(def)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SetInputs(map[string]any{"n": 2}))

	out, err := s.ReadOutput("o")
	require.NoError(t, err)
	assert.Equal(t, "[2 4]", out)
}
