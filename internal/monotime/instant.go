package monotime

import (
	"cmp"
	"math"
)

// Instant is a point on a monotonic timeline, stored as a non-negative
// nanosecond offset from the clock epoch.
type Instant struct {
	ns int64
}

// Epoch is the earliest representable instant.
var Epoch = Instant{}

// MaxInstant is the latest representable instant.
var MaxInstant = Instant{ns: math.MaxInt64}

// InstantAt returns the instant offset after the epoch.
func InstantAt(offset Duration) Instant { return Instant{ns: offset.ns} }

// Compare returns -1, 0 or +1 when i is before, equal to or after other.
func (i Instant) Compare(other Instant) int { return cmp.Compare(i.ns, other.ns) }

// CheckedDurationSince returns the time elapsed from earlier to i. It
// reports false if earlier is after i.
func (i Instant) CheckedDurationSince(earlier Instant) (Duration, bool) {
	if earlier.ns > i.ns {
		return Duration{}, false
	}
	// Both offsets are non-negative, so the difference cannot overflow.
	return Duration{ns: i.ns - earlier.ns}, true
}

// CheckedAdd returns i+d, reporting false if the result would exceed
// MaxInstant.
func (i Instant) CheckedAdd(d Duration) (Instant, bool) {
	if i.ns > math.MaxInt64-d.ns {
		return Instant{}, false
	}
	return Instant{ns: i.ns + d.ns}, true
}

// Nanoseconds returns the offset of i from the epoch.
func (i Instant) Nanoseconds() int64 { return i.ns }

func (i Instant) String() string {
	return "epoch+" + Duration{ns: i.ns}.String()
}
