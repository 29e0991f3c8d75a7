package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ValidApp(t *testing.T) {
	apps, err := CompileString(`
		app: ok: {
			inputs: {x: {}, y: {}}
			derived: d: {expr: "let s = x + y; s * 2"}
			outputs: o: {expr: "d", format: "%v!"}
		}
	`)
	require.NoError(t, err)
	assert.Empty(t, Validate(apps[0]))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		app      *AppSpec
		expected []string
	}{
		{
			name:     "no nodes",
			app:      &AppSpec{Name: "empty", Inputs: []InputSpec{{Name: "x"}}},
			expected: []string{ErrNoNodes},
		},
		{
			name: "duplicate across sections",
			app: &AppSpec{
				Inputs:  []InputSpec{{Name: "x"}},
				Derived: []DerivedSpec{{Name: "x", Expr: "1"}},
			},
			expected: []string{ErrDuplicateName},
		},
		{
			name: "reserved name",
			app: &AppSpec{
				Inputs:  []InputSpec{{Name: "elapsed"}},
				Derived: []DerivedSpec{{Name: "d", Expr: "1"}},
			},
			expected: []string{ErrReservedName},
		},
		{
			name:     "syntax",
			app:      &AppSpec{Derived: []DerivedSpec{{Name: "d", Expr: "1 +"}}},
			expected: []string{ErrExprSyntax},
		},
		{
			name:     "unknown reference",
			app:      &AppSpec{Derived: []DerivedSpec{{Name: "d", Expr: "ghost"}}},
			expected: []string{ErrUnknownReference},
		},
		{
			name: "read missing from explicit deps",
			app: &AppSpec{
				Inputs:  []InputSpec{{Name: "x"}, {Name: "y"}},
				Derived: []DerivedSpec{{Name: "d", Expr: "x + y", Deps: []string{"x"}, ExplicitDeps: true}},
			},
			expected: []string{ErrUndeclaredRead},
		},
		{
			name: "explicit dep undeclared",
			app: &AppSpec{
				Derived: []DerivedSpec{{Name: "d", Expr: "1", Deps: []string{"ghost"}, ExplicitDeps: true}},
			},
			expected: []string{ErrUnknownReference},
		},
		{
			name: "output as dependency",
			app: &AppSpec{
				Derived: []DerivedSpec{{Name: "d", Expr: "o", Deps: []string{"o"}}},
				Outputs: []OutputSpec{{Name: "o", Expr: "1"}},
			},
			expected: []string{ErrOutputAsDep},
		},
		{
			name: "timer and debounce",
			app: &AppSpec{
				Derived: []DerivedSpec{{Name: "d", Expr: "1", Every: time.Second, Debounce: time.Second}},
			},
			expected: []string{ErrTimerAndDebounce},
		},
		{
			name: "format without verb",
			app: &AppSpec{
				Outputs: []OutputSpec{{Name: "o", Expr: "1", Format: "Result"}},
			},
			expected: []string{ErrBadFormat},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, codes(Validate(tt.app)))
		})
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "derived.d", Message: "bad", Code: ErrExprSyntax, Line: 3}
	assert.Equal(t, "[E104] line 3: derived.d: bad", err.Error())

	err.Line = 0
	assert.Equal(t, "[E104] derived.d: bad", err.Error())
}
