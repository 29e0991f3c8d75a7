package compiler

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// ElapsedVar is the identifier through which expressions read the virtual
// clock, in milliseconds. No node may use it as a name.
const ElapsedVar = "elapsed"

// AppSpec is a compiled reactive application: its sources, derived nodes and
// output sinks in declaration order.
type AppSpec struct {
	Name        string
	Description string
	Inputs      []InputSpec
	Derived     []DerivedSpec
	Outputs     []OutputSpec
	Pos         token.Pos
}

// InputSpec declares a source node.
type InputSpec struct {
	Name        string
	Description string
	Pos         token.Pos
}

// DerivedSpec declares a derived node computed by an expression.
type DerivedSpec struct {
	Name        string
	Expr        string
	Deps        []string
	Description string
	Every       time.Duration
	Debounce    time.Duration

	// ExplicitDeps is set when deps were listed in the spec rather than
	// inferred from the expression.
	ExplicitDeps bool
	Pos          token.Pos
}

// OutputSpec declares an output sink.
type OutputSpec struct {
	Name         string
	Expr         string
	Deps         []string
	Description  string
	Format       string
	ExplicitDeps bool
	Pos          token.Pos
}

// NodeNames returns every declared node name: inputs, derived, outputs.
func (a *AppSpec) NodeNames() []string {
	names := make([]string, 0, len(a.Inputs)+len(a.Derived)+len(a.Outputs))
	for _, in := range a.Inputs {
		names = append(names, in.Name)
	}
	for _, d := range a.Derived {
		names = append(names, d.Name)
	}
	for _, o := range a.Outputs {
		names = append(names, o.Name)
	}
	return names
}

// CompileApp parses a CUE value into an AppSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is unified with the embedded #App schema first, so unknown
// fields and wrongly typed options are reported with their position:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`app: calc: { inputs: x: {} }`)
//	spec, err := CompileApp(v.LookupPath(cue.ParsePath("app.calc")))
func CompileApp(v cue.Value) (*AppSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema, err := appSchema(v.Context())
	if err != nil {
		return nil, err
	}
	checked := schema.Unify(v)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	app := &AppSpec{Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		app.Name = labels[len(labels)-1].String()
	}
	if app.Description, err = optionalString(checked, "description"); err != nil {
		return nil, err
	}

	if app.Inputs, err = parseInputs(checked); err != nil {
		return nil, err
	}
	if app.Derived, err = parseDerived(checked); err != nil {
		return nil, err
	}
	if app.Outputs, err = parseOutputs(checked); err != nil {
		return nil, err
	}

	inferDeps(app)
	return app, nil
}

// CompileApps compiles every app declared under the top-level `app` field
// of root, in declaration order.
func CompileApps(root cue.Value) ([]*AppSpec, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	appsVal := root.LookupPath(cue.ParsePath("app"))
	if !appsVal.Exists() {
		return nil, &CompileError{Field: "app", Message: "no apps declared", Pos: root.Pos()}
	}

	iter, err := appsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var apps []*AppSpec
	for iter.Next() {
		app, err := CompileApp(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", iter.Selector(), err)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// CompileString compiles CUE source holding one or more apps.
func CompileString(src string) ([]*AppSpec, error) {
	ctx := cuecontext.New()
	return CompileApps(ctx.CompileString(src))
}

// LoadFile reads and compiles a single CUE file.
func LoadFile(path string) ([]*AppSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	ctx := cuecontext.New()
	return CompileApps(ctx.CompileBytes(data, cue.Filename(path)))
}

// FindApp returns the app called name, or the only app when name is empty.
func FindApp(apps []*AppSpec, name string) (*AppSpec, error) {
	if name == "" {
		if len(apps) == 1 {
			return apps[0], nil
		}
		return nil, fmt.Errorf("%d apps declared; choose one by name", len(apps))
	}
	for _, app := range apps {
		if app.Name == name {
			return app, nil
		}
	}
	return nil, fmt.Errorf("app %q not found", name)
}

// appSchema compiles the embedded schema into ctx. Values from different
// contexts cannot be unified, so the schema is built per context.
func appSchema(ctx *cue.Context) (cue.Value, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("embedded schema: %w", err)
	}
	return schema.LookupPath(cue.ParsePath("#App")), nil
}

func parseInputs(v cue.Value) ([]InputSpec, error) {
	var inputs []InputSpec

	iter, err := fields(v, "inputs")
	if err != nil || iter == nil {
		return nil, err
	}
	for iter.Next() {
		desc, err := optionalString(iter.Value(), "description")
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, InputSpec{
			Name:        iter.Selector().Unquoted(),
			Description: desc,
			Pos:         iter.Value().Pos(),
		})
	}
	return inputs, nil
}

func parseDerived(v cue.Value) ([]DerivedSpec, error) {
	var derived []DerivedSpec

	iter, err := fields(v, "derived")
	if err != nil || iter == nil {
		return nil, err
	}
	for iter.Next() {
		nv := iter.Value()
		d := DerivedSpec{Name: iter.Selector().Unquoted(), Pos: nv.Pos()}

		if d.Expr, err = nv.LookupPath(cue.ParsePath("expr")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if d.Description, err = optionalString(nv, "description"); err != nil {
			return nil, err
		}
		if d.Deps, d.ExplicitDeps, err = optionalStrings(nv, "deps"); err != nil {
			return nil, err
		}
		if d.Every, err = optionalMillis(nv, "every"); err != nil {
			return nil, err
		}
		if d.Debounce, err = optionalMillis(nv, "debounce"); err != nil {
			return nil, err
		}
		derived = append(derived, d)
	}
	return derived, nil
}

func parseOutputs(v cue.Value) ([]OutputSpec, error) {
	var outputs []OutputSpec

	iter, err := fields(v, "outputs")
	if err != nil || iter == nil {
		return nil, err
	}
	for iter.Next() {
		nv := iter.Value()
		o := OutputSpec{Name: iter.Selector().Unquoted(), Pos: nv.Pos()}

		if o.Expr, err = nv.LookupPath(cue.ParsePath("expr")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if o.Description, err = optionalString(nv, "description"); err != nil {
			return nil, err
		}
		if o.Format, err = optionalString(nv, "format"); err != nil {
			return nil, err
		}
		if o.Deps, o.ExplicitDeps, err = optionalStrings(nv, "deps"); err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, nil
}

// fields returns an iterator over the struct at path, or nil if it is absent.
func fields(v cue.Value, path string) (*cue.Iterator, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return nil, nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return iter, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalStrings(v cue.Value, path string) ([]string, bool, error) {
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return nil, false, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, false, formatCUEError(err)
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, false, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, true, nil
}

func optionalMillis(v cue.Value, path string) (time.Duration, error) {
	iv := v.LookupPath(cue.ParsePath(path))
	if !iv.Exists() {
		return 0, nil
	}
	ms, err := iv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if ms <= 0 || ms > math.MaxInt64/int64(time.Millisecond) {
		return 0, &CompileError{Field: path, Message: fmt.Sprintf("%d ms is out of range", ms), Pos: iv.Pos()}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// CompileError reports a problem in an app definition.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
