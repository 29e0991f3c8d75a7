package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// Validation error codes (E100-E199)
const (
	ErrNoNodes          = "E101" // app declares no derived nodes or outputs
	ErrDuplicateName    = "E102" // name used twice across inputs/derived/outputs
	ErrReservedName     = "E103" // node named like a built-in variable
	ErrExprSyntax       = "E104" // expression does not parse
	ErrUnknownReference = "E105" // expression or deps name an undeclared node
	ErrUndeclaredRead   = "E106" // expression reads a node missing from explicit deps
	ErrOutputAsDep      = "E107" // something depends on an output sink
	ErrTimerAndDebounce = "E108" // node sets both every and debounce
	ErrBadFormat        = "E109" // output format has no verb for the value
)

// ValidationError represents an app validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks an app for problems the CUE schema cannot express.
// Returns all errors found (does not fail-fast). Dependency cycles are
// reported when a session is built from the app.
func Validate(app *AppSpec) []ValidationError {
	var errs []ValidationError

	if len(app.Derived) == 0 && len(app.Outputs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "app." + app.Name,
			Message: "app must declare at least one derived node or output",
			Code:    ErrNoNodes,
			Line:    app.Pos.Line(),
		})
	}

	kinds := make(map[string]string)
	declare := func(kind, name string, line int) {
		if prev, dup := kinds[name]; dup {
			errs = append(errs, ValidationError{
				Field:   kind + "." + name,
				Message: fmt.Sprintf("name %q already declared in %s", name, prev),
				Code:    ErrDuplicateName,
				Line:    line,
			})
			return
		}
		kinds[name] = kind
		if name == ElapsedVar {
			errs = append(errs, ValidationError{
				Field:   kind + "." + name,
				Message: fmt.Sprintf("%q is reserved for the virtual clock", name),
				Code:    ErrReservedName,
				Line:    line,
			})
		}
	}
	for _, in := range app.Inputs {
		declare("inputs", in.Name, in.Pos.Line())
	}
	for _, d := range app.Derived {
		declare("derived", d.Name, d.Pos.Line())
	}
	for _, o := range app.Outputs {
		declare("outputs", o.Name, o.Pos.Line())
	}

	for _, d := range app.Derived {
		field := "derived." + d.Name
		errs = append(errs, validateExpr(field, d.Expr, d.Deps, d.ExplicitDeps, kinds, d.Pos.Line())...)
		if d.Every > 0 && d.Debounce > 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "every and debounce cannot be combined",
				Code:    ErrTimerAndDebounce,
				Line:    d.Pos.Line(),
			})
		}
	}
	for _, o := range app.Outputs {
		field := "outputs." + o.Name
		errs = append(errs, validateExpr(field, o.Expr, o.Deps, o.ExplicitDeps, kinds, o.Pos.Line())...)
		if o.Format != "" && !strings.Contains(o.Format, "%") {
			errs = append(errs, ValidationError{
				Field:   field + ".format",
				Message: fmt.Sprintf("format %q has no verb for the value, e.g. %%v", o.Format),
				Code:    ErrBadFormat,
				Line:    o.Pos.Line(),
			})
		}
	}

	return errs
}

func validateExpr(field, src string, deps []string, explicit bool, kinds map[string]string, line int) []ValidationError {
	var errs []ValidationError

	ids, err := Identifiers(src)
	if err != nil {
		return []ValidationError{{
			Field:   field + ".expr",
			Message: fmt.Sprintf("invalid expression %q: %v", src, err),
			Code:    ErrExprSyntax,
			Line:    line,
		}}
	}

	for _, id := range ids {
		if id == ElapsedVar {
			continue
		}
		if _, ok := kinds[id]; !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".expr",
				Message: fmt.Sprintf("expression %q reads undeclared node %q", src, id),
				Code:    ErrUnknownReference,
				Line:    line,
			})
			continue
		}
		if explicit && !slices.Contains(deps, id) {
			errs = append(errs, ValidationError{
				Field:   field + ".deps",
				Message: fmt.Sprintf("expression reads %q but deps do not list it", id),
				Code:    ErrUndeclaredRead,
				Line:    line,
			})
		}
	}

	for _, dep := range deps {
		kind, ok := kinds[dep]
		switch {
		case !ok:
			if explicit {
				errs = append(errs, ValidationError{
					Field:   field + ".deps",
					Message: fmt.Sprintf("dependency %q is not declared", dep),
					Code:    ErrUnknownReference,
					Line:    line,
				})
			}
		case kind == "outputs":
			errs = append(errs, ValidationError{
				Field:   field + ".deps",
				Message: fmt.Sprintf("%q is an output; outputs cannot be read by other nodes", dep),
				Code:    ErrOutputAsDep,
				Line:    line,
			})
		}
	}

	return errs
}
