// Package reactive runs an application's reactive logic outside of any live
// session: no network, no browser, no wall clock.
//
// A Definition declares source (input) nodes, derived nodes and output sinks.
// New builds an isolated Session from it. A test then injects inputs with
// SetInputs, advances virtual time with Elapse, and inspects values with Read
// and ReadOutput.
//
// EXECUTION MODEL:
//
// Pull-based, lazy, memoized:
// SetInputs only marks dependents stale. Nothing is computed until a Read
// asks for it; Read then resolves stale ancestors depth-first, dependencies
// before dependents, and recomputes each node at most once.
//
// Change epochs:
// Every state change (input batch, timer fire, debounce fire) opens a new
// epoch. A node records the epoch its value last changed and the epoch its
// cache was last verified. A stale node recomputes only if a dependency
// changed after it was verified, so an unchanged intermediate value stops
// recomputation from rippling further.
//
// Virtual time:
// Timer nodes (Every) fire at multiples of their interval from session start.
// Debounce nodes (Debounce) fire once their upstream has been quiet for the
// configured delay. Both are driven only by Elapse.
//
// CRITICAL PATTERNS:
//
// Explicit sessions:
// No package-level state. Two sessions built from the same Definition are
// fully independent.
//
// Determinism:
// Single-threaded and synchronous. Evaluation order is fixed by the graph
// (height, then declaration order), never by map iteration or call order.
//
// Typed failures:
// Every failure is an *Error with a stable Code. Nothing is silently
// defaulted: reading a node whose inputs are unset fails with UNRESOLVED_INPUT.
//
// Example:
//
//	s, err := reactive.New(func(b *reactive.Builder) {
//	    b.Input("x")
//	    b.Input("y")
//	    b.Derived("sum", []string{"x", "y"}, func(v reactive.Values) (any, error) {
//	        return v.Get("x").(int) + v.Get("y").(int), nil
//	    })
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	_ = s.SetInputs(map[string]any{"x": 1, "y": 2})
//	sum, err := s.Read("sum") // 3
package reactive
