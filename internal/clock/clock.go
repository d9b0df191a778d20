// Package clock defines the contracts shared by every clock family:
// instants, durations, and the monotonic clock that produces them.
//
// Go has no associated types, so a clock family is expressed as a pair
// of type parameters that reference each other: an Instant type I whose
// arithmetic is in terms of a Duration type D. Any pair satisfying the
// constraints can be driven by the timed engine.
package clock

import "context"

// Instant is a point on a continuous, totally ordered timeline.
//
// Implementations must keep arithmetic consistent with ordering: if
// a.CheckedAdd(d) returns (b, true) then b.Compare(a) >= 0 and
// b.CheckedDurationSince(a) returns (d, true).
type Instant[I any, D any] interface {
	comparable

	// Compare returns -1, 0 or +1 when the receiver is before, equal to
	// or after other.
	Compare(other I) int

	// CheckedDurationSince returns the time elapsed since earlier. It
	// reports false instead of returning a negative duration.
	CheckedDurationSince(earlier I) (D, bool)

	// CheckedAdd returns the instant d after the receiver. It reports
	// false if the result is not representable.
	CheckedAdd(d D) (I, bool)
}

// Duration is a non-negative, totally ordered amount of elapsed time.
type Duration[D any] interface {
	comparable
	Compare(other D) int
}

// Clock is a monotonically non-decreasing source of instants.
//
// Two successive calls to Now with no intervening Sleep never go
// backwards. After Sleep(d) returns nil, Now is at least d past the
// reading taken before the call.
type Clock[I Instant[I, D], D Duration[D]] interface {
	// Now returns the current instant according to this clock.
	Now() I

	// Sleep waits for (real clocks) or advances by (virtual clocks) d.
	// A returned error wraps ErrOverflow.
	Sleep(d D) error

	// Clone returns an independently owned copy of the clock, so that
	// concurrent branches never share mutable clock state.
	Clone() Clock[I, D]
}

// ContextSleeper is implemented by real clocks whose sleep can be cut
// short. Operations prefer it over Clock.Sleep so a losing race branch
// stops waiting once its context is cancelled.
type ContextSleeper[D any] interface {
	SleepContext(ctx context.Context, d D) error
}

// Simulated is implemented by clocks whose Sleep advances time without
// suspending the calling goroutine.
type Simulated interface {
	Simulated() bool
}

// IsSimulated reports whether c advances time without real suspension.
func IsSimulated(c any) bool {
	s, ok := c.(Simulated)
	return ok && s.Simulated()
}
