package compiler

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/reactest/internal/reactive"
)

// identifierCollector gathers identifier names in first-seen order, along
// with the names bound by let declarations and the names called as functions.
type identifierCollector struct {
	seen    map[string]bool
	names   []string
	locals  map[string]bool
	callees map[string]bool
}

func (c *identifierCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !c.seen[n.Value] {
			c.seen[n.Value] = true
			c.names = append(c.names, n.Value)
		}
	case *ast.VariableDeclaratorNode:
		c.locals[n.Name] = true
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			c.callees[id.Value] = true
		}
	}
}

// Identifiers returns the free identifiers an expression references, in the
// order they first appear. Function names, member names and let-bound
// variables are not included.
func Identifiers(src string) ([]string, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	c := &identifierCollector{
		seen:    make(map[string]bool),
		locals:  make(map[string]bool),
		callees: make(map[string]bool),
	}
	ast.Walk(&tree.Node, c)

	free := make([]string, 0, len(c.names))
	for _, name := range c.names {
		if !c.locals[name] && !c.callees[name] {
			free = append(free, name)
		}
	}
	return free, nil
}

// inferDeps fills Deps for every node that did not list them: the
// expression's identifiers that name a declared node. Identifiers naming
// nothing are left for Validate to report; expressions that do not parse are
// reported by Validate too and get no deps here.
func inferDeps(app *AppSpec) {
	declared := make(map[string]bool)
	for _, name := range app.NodeNames() {
		declared[name] = true
	}

	infer := func(src string) []string {
		ids, err := Identifiers(src)
		if err != nil {
			return nil
		}
		deps := []string{}
		for _, id := range ids {
			if declared[id] {
				deps = append(deps, id)
			}
		}
		return deps
	}

	for i := range app.Derived {
		if !app.Derived[i].ExplicitDeps {
			app.Derived[i].Deps = infer(app.Derived[i].Expr)
		}
	}
	for i := range app.Outputs {
		if !app.Outputs[i].ExplicitDeps {
			app.Outputs[i].Deps = infer(app.Outputs[i].Expr)
		}
	}
}

// Definition compiles every expression and returns the app's reactive
// definition. The app is validated first; all problems are returned joined.
//
// Expressions see their dependencies by name plus `elapsed`, the virtual
// clock in milliseconds. Outputs render with their format (fmt verbs) or,
// without one, with fmt.Sprint.
func (a *AppSpec) Definition() (reactive.Definition, error) {
	if verrs := Validate(a); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, verr := range verrs {
			errs[i] = verr
		}
		return nil, errors.Join(errs...)
	}

	derived := make([]*vm.Program, len(a.Derived))
	for i, d := range a.Derived {
		program, err := expr.Compile(d.Expr)
		if err != nil {
			return nil, &CompileError{Field: "derived." + d.Name, Message: err.Error(), Pos: d.Pos}
		}
		derived[i] = program
	}
	outputs := make([]*vm.Program, len(a.Outputs))
	for i, o := range a.Outputs {
		program, err := expr.Compile(o.Expr)
		if err != nil {
			return nil, &CompileError{Field: "outputs." + o.Name, Message: err.Error(), Pos: o.Pos}
		}
		outputs[i] = program
	}

	return func(b *reactive.Builder) {
		for _, in := range a.Inputs {
			b.Input(in.Name)
		}
		for i, d := range a.Derived {
			var opts []reactive.NodeOption
			if d.Every > 0 {
				opts = append(opts, reactive.Every(d.Every))
			}
			if d.Debounce > 0 {
				opts = append(opts, reactive.Debounce(d.Debounce))
			}
			b.Derived(d.Name, d.Deps, evaluate(derived[i]), opts...)
		}
		for i, o := range a.Outputs {
			b.Output(o.Name, o.Deps, evaluate(outputs[i]), render(o.Format))
		}
	}, nil
}

func evaluate(program *vm.Program) reactive.ComputeFunc {
	return func(v reactive.Values) (any, error) {
		env := v.All()
		env[ElapsedVar] = int(v.Now().Milliseconds())
		return expr.Run(program, env)
	}
}

func render(format string) reactive.RenderFunc {
	if format == "" {
		return nil
	}
	return func(value any) (string, error) {
		return fmt.Sprintf(format, value), nil
	}
}
