package reactive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"time"
)

// Session is one isolated instance of a reactive graph plus its virtual clock.
//
// A Session is created per test and torn down with Close. Sessions share
// nothing, so independent tests (or parallel scenario runs) cannot interfere.
// A Session is not safe for concurrent use.
type Session struct {
	nodes  map[string]*node
	order  []*node // topological: height, then declaration order
	inputs []string
	clock  *VirtualClock

	// epoch advances on every state change (input batch, timer or debounce fire).
	epoch uint64

	logger   *slog.Logger
	observer func(Event)

	evaluating bool
	closed     bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Sessions log at Debug level only.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers fn to receive every session Event, synchronously.
func WithObserver(fn func(Event)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// New builds a Session from def.
//
// All sources start unset. Construction fails, returning no session, if the
// definition is malformed (INVALID_GRAPH, UNKNOWN_NODE, possibly several
// joined) or if its dependency graph contains a cycle (GRAPH_CYCLE).
func New(def Definition, opts ...Option) (*Session, error) {
	if def == nil {
		return nil, newInvalidGraphError("", "definition is nil")
	}

	b := newBuilder()
	def(b)

	if errs := b.link(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if path := findCycle(b.nodes); path != nil {
		return nil, NewCycleError(path)
	}

	s := &Session{
		nodes:  b.byName,
		order:  assignHeights(b.nodes),
		clock:  NewVirtualClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, n := range s.order {
		if n.kind == KindInput {
			s.inputs = append(s.inputs, n.name)
		}
		if n.timed {
			n.nextFire = n.every
		}
	}

	s.logger.Debug("session created", "nodes", len(s.order), "inputs", len(s.inputs))
	return s, nil
}

// SetInputs writes one or more source nodes as a single change batch.
//
// Every name is checked before anything is written: an UNKNOWN_INPUT error
// leaves the session untouched. Dependents are invalidated once per batch, so
// a node depending on several changed sources recomputes once, observing the
// whole batch rather than intermediate states.
func (s *Session) SetInputs(values map[string]any) error {
	if err := s.guard(); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		n, ok := s.nodes[name]
		if !ok || n.kind != KindInput {
			return NewUnknownInputError(name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	s.epoch++
	for _, name := range names {
		n := s.nodes[name]
		n.value = values[name]
		n.set = true
		n.changedAt = s.epoch
		s.emit(Event{Kind: EventSet, Node: name, At: s.clock.Now(), Value: n.value})
	}

	visited := make(map[*node]bool)
	for _, name := range names {
		s.invalidate(s.nodes[name], visited)
	}

	s.logger.Debug("inputs set", "names", names, "epoch", s.epoch)
	return nil
}

// Read returns the current value of node name, recomputing stale ancestors
// first. Reading an input returns its value.
//
// Returns UNRESOLVED_INPUT if any source the node transitively needs is unset;
// there are no implicit defaults.
func (s *Session) Read(name string) (any, error) {
	n, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := s.resolveFor(n); err != nil {
		return nil, err
	}
	return n.value, nil
}

// ReadOutput resolves output sink name like Read and returns its rendered artifact.
func (s *Session) ReadOutput(name string) (string, error) {
	n, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	if n.kind != KindOutput {
		return "", &Error{
			Code:    ErrCodeNotAnOutput,
			Message: fmt.Sprintf("%q is a %s node, not an output", name, n.kind),
			Node:    name,
		}
	}
	if err := s.resolveFor(n); err != nil {
		return "", err
	}
	return n.rendered, nil
}

// Dirty reports whether node name's cached value is pending recomputation.
// Inputs are never dirty; derived nodes that were never computed are.
func (s *Session) Dirty(name string) (bool, error) {
	n, err := s.lookup(name)
	if err != nil {
		return false, err
	}
	return n.dirty(), nil
}

// Computations returns how many times node name's compute function has run.
func (s *Session) Computations(name string) (int, error) {
	n, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return n.computations, nil
}

// Fires returns how many timer or debounce fires node name has received.
func (s *Session) Fires(name string) (int, error) {
	n, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return n.fires, nil
}

// Now returns the session's virtual time.
func (s *Session) Now() time.Duration {
	if s.clock == nil {
		return 0
	}
	return s.clock.Now()
}

// Nodes describes every node in topological order.
func (s *Session) Nodes() []NodeInfo {
	infos := make([]NodeInfo, len(s.order))
	for i, n := range s.order {
		infos[i] = n.info()
	}
	return infos
}

// Inputs returns the names of all source nodes in topological order.
func (s *Session) Inputs() []string {
	out := make([]string, len(s.inputs))
	copy(out, s.inputs)
	return out
}

// Close releases the session's graph and clock. Subsequent calls fail with
// SESSION_CLOSED. Close is idempotent.
func (s *Session) Close() error {
	if s.evaluating {
		return &Error{Code: ErrCodeReentrantCall, Message: "Close called from inside a compute function"}
	}
	if s.closed {
		return nil
	}
	s.closed = true
	s.nodes = nil
	s.order = nil
	s.inputs = nil
	s.clock = nil
	s.observer = nil
	s.logger.Debug("session closed")
	return nil
}

func (s *Session) guard() error {
	if s.closed {
		return &Error{Code: ErrCodeSessionClosed, Message: "session is closed"}
	}
	if s.evaluating {
		return &Error{Code: ErrCodeReentrantCall, Message: "session called from inside a compute function"}
	}
	return nil
}

func (s *Session) lookup(name string) (*node, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	n, ok := s.nodes[name]
	if !ok {
		return nil, newUnknownNodeError(name)
	}
	return n, nil
}

func (s *Session) resolveFor(target *node) error {
	err := s.resolve(target)
	var re *Error
	if errors.As(err, &re) && re.Code == ErrCodeUnresolvedInput {
		re.Node = target.name
	}
	return err
}

// resolve brings n up to date, depth-first, dependencies before dependents.
//
// A fresh node costs one flag check. A stale node first resolves its
// dependencies and then recomputes only if it was forced by a fire, was never
// computed, or one of its dependencies changed value since it was verified.
// Clearing the flags on the way out memoizes the walk: a node shared by
// several paths is resolved once per read.
func (s *Session) resolve(n *node) error {
	if n.kind == KindInput {
		if !n.set {
			return NewUnresolvedInputError(n.name, n.name)
		}
		return nil
	}
	if n.computed && !n.flags.has(flagStale|flagForced) {
		return nil
	}

	for _, dep := range n.deps {
		if err := s.resolve(dep); err != nil {
			return err
		}
	}

	if !n.computed || n.flags.has(flagForced) || s.depsChanged(n) {
		if err := s.recompute(n); err != nil {
			return err
		}
	}

	n.verifiedAt = s.epoch
	n.flags.clear(flagStale | flagForced)
	return nil
}

func (s *Session) depsChanged(n *node) bool {
	for _, dep := range n.deps {
		if dep.changedAt > n.verifiedAt {
			return true
		}
	}
	return false
}

func (s *Session) recompute(n *node) error {
	value, err := s.invoke(n)
	if err != nil {
		return err
	}

	var rendered string
	if n.kind == KindOutput {
		rendered, err = s.renderValue(n, value)
		if err != nil {
			return err
		}
	}

	// Equality cut-off: dependents only see a change if the value differs.
	if !n.computed || !reflect.DeepEqual(n.value, value) {
		n.changedAt = s.epoch
	}
	n.value = value
	n.rendered = rendered
	n.computed = true

	s.logger.Debug("recomputed", "node", n.name, "at", s.clock.Now(), "computations", n.computations)
	s.emit(Event{Kind: EventRecompute, Node: n.name, At: s.clock.Now(), Value: value, Rendered: rendered})
	return nil
}

func (s *Session) invoke(n *node) (value any, err error) {
	n.computations++
	s.evaluating = true
	defer func() {
		s.evaluating = false
		if r := recover(); r != nil {
			value = nil
			err = newComputeError(n.name, fmt.Errorf("panic: %v", r))
		}
	}()

	value, err = n.compute(Values{s: s, n: n})
	if err != nil {
		return nil, newComputeError(n.name, err)
	}
	return value, nil
}

func (s *Session) renderValue(n *node, value any) (rendered string, err error) {
	s.evaluating = true
	defer func() {
		s.evaluating = false
		if r := recover(); r != nil {
			err = newComputeError(n.name, fmt.Errorf("render panic: %v", r))
		}
	}()

	rendered, err = n.render(value)
	if err != nil {
		return "", newComputeError(n.name, fmt.Errorf("render: %w", err))
	}
	return rendered, nil
}

// invalidate marks everything downstream of n stale, once per batch.
// Debounce nodes absorb the change: their deadline is re-armed instead and
// propagation stops there until they fire.
func (s *Session) invalidate(n *node, visited map[*node]bool) {
	for _, sub := range n.subs {
		if visited[sub] {
			continue
		}
		visited[sub] = true

		if sub.delayed {
			s.arm(sub)
			continue
		}
		sub.flags.set(flagStale)
		s.invalidate(sub, visited)
	}
}

// emit delivers e to the observer. Observers must not call back into the
// session; such calls fail with REENTRANT_CALL.
func (s *Session) emit(e Event) {
	if s.observer == nil {
		return
	}
	prev := s.evaluating
	s.evaluating = true
	defer func() { s.evaluating = prev }()
	s.observer(e)
}
