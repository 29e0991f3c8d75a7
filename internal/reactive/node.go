package reactive

import "time"

// Kind is the closed set of node kinds a graph may contain.
type Kind int

const (
	// KindInput is a settable source node with no upstream dependencies.
	KindInput Kind = iota
	// KindDerived is a pure function of other nodes' current values.
	KindDerived
	// KindOutput is a derived node whose value is also rendered to a string.
	// Output sinks are leaves: no other node may depend on them.
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDerived:
		return "derived"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// NodeInfo describes a node for introspection (graph listings, CLI output).
type NodeInfo struct {
	Name     string        `json:"name"`
	Kind     Kind          `json:"-"`
	KindName string        `json:"kind"`
	Deps     []string      `json:"deps,omitempty"`
	Height   int           `json:"height"`
	Every    time.Duration `json:"every,omitempty"`
	Debounce time.Duration `json:"debounce,omitempty"`
}

type node struct {
	name     string
	kind     Kind
	index    int // declaration order, breaks ties in topological order
	depNames []string
	deps     []*node
	subs     []*node

	compute  ComputeFunc
	render   RenderFunc
	every    time.Duration
	debounce time.Duration
	timed    bool // Every was given
	delayed  bool // Debounce was given

	height int
	flags  flags

	set      bool // inputs: a value has been supplied
	computed bool
	value    any
	rendered string

	// changedAt is the epoch in which value last changed;
	// verifiedAt the epoch in which the cache was last confirmed fresh.
	changedAt  uint64
	verifiedAt uint64

	computations int
	fires        int

	nextFire  time.Duration // timers
	exhausted bool          // timers: nextFire would overflow
	deadline  time.Duration // debounce
	armed     bool
}

func (n *node) info() NodeInfo {
	deps := make([]string, len(n.depNames))
	copy(deps, n.depNames)
	return NodeInfo{
		Name:     n.name,
		Kind:     n.kind,
		KindName: n.kind.String(),
		Deps:     deps,
		Height:   n.height,
		Every:    n.every,
		Debounce: n.debounce,
	}
}

// dirty reports whether the cached value may not reflect current inputs.
func (n *node) dirty() bool {
	if n.kind == KindInput {
		return false
	}
	return !n.computed || n.flags.has(flagStale|flagForced)
}
