package reactive

import (
	"math"
	"time"
)

// Elapse advances the virtual clock by d.
//
// Every timer fire and debounce deadline falling in (now, now+d] is processed
// in time order, ties broken by topological order, with the clock set to the
// event's instant so compute functions observe the right Now. Each fire marks
// its node dirty exactly once; a 300ms timer crossed three times by one Elapse
// fires three times, not once per millisecond. Elapse(0) fires nothing.
//
// Returns NEGATIVE_ELAPSE for d < 0 and CLOCK_OVERFLOW when now+d does not
// fit in a time.Duration, in both cases without touching the clock.
func (s *Session) Elapse(d time.Duration) error {
	if err := s.guard(); err != nil {
		return err
	}
	if d < 0 {
		return NewNegativeElapseError(d)
	}
	if d > math.MaxInt64-s.clock.Now() {
		return NewClockOverflowError(s.clock.Now(), d)
	}

	target := s.clock.Now() + d
	for {
		n, at, ok := s.nextDue(target)
		if !ok {
			break
		}
		s.clock.advanceTo(at)
		s.fire(n)
	}
	s.clock.advanceTo(target)

	s.logger.Debug("elapsed", "by", d, "now", s.clock.Now())
	return nil
}

// nextDue returns the earliest pending timer or debounce event at or before target.
func (s *Session) nextDue(target time.Duration) (*node, time.Duration, bool) {
	var (
		due *node
		at  time.Duration
	)
	for _, n := range s.order {
		var when time.Duration
		switch {
		case n.timed && !n.exhausted:
			when = n.nextFire
		case n.delayed && n.armed:
			when = n.deadline
		default:
			continue
		}
		if when > target {
			continue
		}
		// s.order is topological, so strict < keeps the earliest-ordered node on ties.
		if due == nil || when < at {
			due, at = n, when
		}
	}
	return due, at, due != nil
}

// fire records one timer or debounce event: the node is forced to recompute on
// its next read and its dependents are invalidated.
func (s *Session) fire(n *node) {
	if n.timed {
		// A timer whose next fire is past the end of virtual time never fires again.
		if n.nextFire > math.MaxInt64-n.every {
			n.exhausted = true
		} else {
			n.nextFire += n.every
		}
	}
	if n.delayed {
		n.armed = false
	}

	s.epoch++
	n.fires++
	n.flags.set(flagForced)
	s.invalidate(n, make(map[*node]bool))

	s.logger.Debug("fired", "node", n.name, "at", s.clock.Now(), "fires", n.fires)
	s.emit(Event{Kind: EventFire, Node: n.name, At: s.clock.Now()})
}

// arm (re)starts n's debounce deadline from the current virtual time.
func (s *Session) arm(n *node) {
	n.deadline = math.MaxInt64
	if now := s.clock.Now(); now <= math.MaxInt64-n.debounce {
		n.deadline = now + n.debounce
	}
	n.armed = true
	s.emit(Event{Kind: EventArm, Node: n.name, At: s.clock.Now()})
}
