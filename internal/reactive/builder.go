package reactive

import (
	"fmt"
	"time"
)

// Definition declares an application's reactive logic.
// It is invoked exactly once per Session, against a fresh Builder.
type Definition func(b *Builder)

// ComputeFunc computes a derived node's value from its dependencies.
type ComputeFunc func(v Values) (any, error)

// RenderFunc turns an output sink's computed value into its rendered artifact.
type RenderFunc func(value any) (string, error)

// NodeOption configures a derived node.
type NodeOption func(*node)

// Every invalidates the node each time interval d of virtual time passes,
// counted from session start. The node recomputes on the next read after a fire.
func Every(d time.Duration) NodeOption {
	return func(n *node) {
		n.every = d
		n.timed = true
	}
}

// Debounce makes the node follow its dependencies only once they have been
// quiet for d of virtual time. Each upstream change re-arms the deadline;
// until it passes, reads return the previously computed value.
func Debounce(d time.Duration) NodeOption {
	return func(n *node) {
		n.debounce = d
		n.delayed = true
	}
}

// Builder collects node declarations. Declaration order is irrelevant for
// dependencies (forward references are allowed) but breaks ties between
// nodes of equal height so evaluation order is deterministic.
type Builder struct {
	nodes  []*node
	byName map[string]*node
	errs   []error
}

func newBuilder() *Builder {
	return &Builder{byName: make(map[string]*node)}
}

// Input declares a source node. Sources start unset.
func (b *Builder) Input(name string) {
	b.add(&node{name: name, kind: KindInput})
}

// Derived declares a node computed from deps.
func (b *Builder) Derived(name string, deps []string, fn ComputeFunc, opts ...NodeOption) {
	n := &node{name: name, kind: KindDerived, depNames: deps, compute: fn}
	for _, opt := range opts {
		opt(n)
	}
	b.add(n)
}

// Output declares an output sink. render may be nil, in which case the value
// is rendered with fmt.Sprint.
func (b *Builder) Output(name string, deps []string, fn ComputeFunc, render RenderFunc) {
	if render == nil {
		render = func(v any) (string, error) { return fmt.Sprint(v), nil }
	}
	b.add(&node{name: name, kind: KindOutput, depNames: deps, compute: fn, render: render})
}

func (b *Builder) add(n *node) {
	if n.name == "" {
		b.errs = append(b.errs, newInvalidGraphError("", "node %d has an empty name", len(b.nodes)))
		return
	}
	if _, dup := b.byName[n.name]; dup {
		b.errs = append(b.errs, newInvalidGraphError(n.name, "node %q declared twice", n.name))
		return
	}
	n.index = len(b.nodes)
	b.nodes = append(b.nodes, n)
	b.byName[n.name] = n
}

// link resolves dependency names into edges and validates node options.
// All problems are collected so a definition can be fixed in one pass.
func (b *Builder) link() []error {
	errs := append([]error(nil), b.errs...)

	for _, n := range b.nodes {
		if n.kind != KindInput && n.compute == nil {
			errs = append(errs, newInvalidGraphError(n.name, "node %q has no compute function", n.name))
		}
		if n.timed && n.every <= 0 {
			errs = append(errs, newInvalidGraphError(n.name, "node %q: interval must be positive, got %s", n.name, n.every))
		}
		if n.delayed && n.debounce <= 0 {
			errs = append(errs, newInvalidGraphError(n.name, "node %q: debounce must be positive, got %s", n.name, n.debounce))
		}
		if n.timed && n.delayed {
			errs = append(errs, newInvalidGraphError(n.name, "node %q cannot be both a timer and debounced", n.name))
		}

		seen := make(map[string]bool, len(n.depNames))
		for _, depName := range n.depNames {
			if seen[depName] {
				continue
			}
			seen[depName] = true

			dep, ok := b.byName[depName]
			if !ok {
				err := newUnknownNodeError(depName)
				err.Message = fmt.Sprintf("node %q depends on undeclared node %q", n.name, depName)
				errs = append(errs, err)
				continue
			}
			if dep.kind == KindOutput {
				errs = append(errs, newInvalidGraphError(n.name, "node %q depends on output %q; outputs cannot be read by other nodes", n.name, depName))
				continue
			}
			n.deps = append(n.deps, dep)
			dep.subs = append(dep.subs, n)
		}
	}

	return errs
}
