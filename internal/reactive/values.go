package reactive

import (
	"fmt"
	"time"
)

// Values gives a compute function read access to its dependencies.
// Only declared dependencies are visible; this keeps the static graph, and
// therefore cycle detection and invalidation, honest.
type Values struct {
	s *Session
	n *node
}

// Node returns the name of the node being computed.
func (v Values) Node() string {
	return v.n.name
}

// Now returns the session's current virtual time.
func (v Values) Now() time.Duration {
	return v.s.clock.Now()
}

// Lookup returns the current value of dependency name.
func (v Values) Lookup(name string) (any, bool) {
	for _, dep := range v.n.deps {
		if dep.name == name {
			return dep.value, true
		}
	}
	return nil, false
}

// Get returns the current value of dependency name.
// Panics if name is not a declared dependency; the panic surfaces to the
// caller as a COMPUTE_FAILED error.
func (v Values) Get(name string) any {
	value, ok := v.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("%q is not a dependency of %q", name, v.n.name))
	}
	return value
}

// All returns every dependency value keyed by name.
func (v Values) All() map[string]any {
	all := make(map[string]any, len(v.n.deps))
	for _, dep := range v.n.deps {
		all[dep.name] = dep.value
	}
	return all
}

// Get returns dependency name converted to T.
func Get[T any](v Values, name string) (T, error) {
	var zero T
	raw, ok := v.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("%q is not a dependency of %q", name, v.n.name)
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("dependency %q is %T, not %T", name, raw, zero)
	}
	return typed, nil
}
