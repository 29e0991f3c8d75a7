package reactive

// flags represents the freshness state of a node.
type flags uint8

const (
	flagNone   flags = 0
	flagStale  flags = 1 << iota // an upstream node changed; verify deps before reuse
	flagForced                   // a timer or debounce fired; recompute unconditionally
)

func (f flags) has(flag flags) bool {
	return f&flag != 0
}

func (f *flags) set(flag flags) {
	*f |= flag
}

func (f *flags) clear(flag flags) {
	*f &^= flag
}
