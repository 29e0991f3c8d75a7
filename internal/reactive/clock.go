package reactive

import (
	"math"
	"time"
)

// VirtualClock is the test-controlled time source of a Session.
//
// It starts at zero, moves only when Advance is called and never moves
// backwards. Timer and debounce nodes are driven exclusively by it, so a test
// that elapses 10 minutes runs in microseconds.
//
// Not safe for concurrent use; a Session is single-threaded.
type VirtualClock struct {
	now time.Duration
}

// NewVirtualClock creates a clock at virtual time zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now returns the elapsed virtual time since the clock was created.
func (c *VirtualClock) Now() time.Duration {
	return c.now
}

// Advance moves the clock forward by d.
// Returns a NEGATIVE_ELAPSE error if d < 0 and CLOCK_OVERFLOW if now+d is out
// of range; the clock is left untouched.
func (c *VirtualClock) Advance(d time.Duration) error {
	if d < 0 {
		return NewNegativeElapseError(d)
	}
	if d > math.MaxInt64-c.now {
		return NewClockOverflowError(c.now, d)
	}
	c.now += d
	return nil
}

// advanceTo moves the clock to t. Earlier instants are ignored.
func (c *VirtualClock) advanceTo(t time.Duration) {
	if t > c.now {
		c.now = t
	}
}
