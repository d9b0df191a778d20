// Package monotime provides the default clock family: nanosecond
// instants measured from a process-local epoch, a real clock backed by
// Go's monotonic timer, and a virtual clock for deterministic tests.
package monotime

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNegativeDuration is returned when a negative time.Duration is
// converted to a Duration.
var ErrNegativeDuration = errors.New("monotime: negative duration")

// Duration is a non-negative amount of elapsed time with nanosecond
// resolution. The zero value is a zero duration.
type Duration struct {
	ns int64
}

// NewDuration converts d, rejecting negative values.
func NewDuration(d time.Duration) (Duration, error) {
	if d < 0 {
		return Duration{}, fmt.Errorf("%w: %v", ErrNegativeDuration, d)
	}
	return Duration{ns: int64(d)}, nil
}

// MustDuration is like NewDuration but panics on negative input.
func MustDuration(d time.Duration) Duration {
	dur, err := NewDuration(d)
	if err != nil {
		panic(err)
	}
	return dur
}

// Milliseconds returns a duration of n milliseconds.
func Milliseconds(n int64) Duration {
	return MustDuration(time.Duration(n) * time.Millisecond)
}

// MaxDuration is the longest representable duration.
var MaxDuration = Duration{ns: math.MaxInt64}

// Compare returns -1, 0 or +1 when d is shorter than, equal to or longer
// than other.
func (d Duration) Compare(other Duration) int { return cmp.Compare(d.ns, other.ns) }

// CheckedAdd returns d+other, reporting false on overflow.
func (d Duration) CheckedAdd(other Duration) (Duration, bool) {
	if d.ns > math.MaxInt64-other.ns {
		return Duration{}, false
	}
	return Duration{ns: d.ns + other.ns}, true
}

// CheckedSub returns d-other, reporting false if the result would be
// negative.
func (d Duration) CheckedSub(other Duration) (Duration, bool) {
	if other.ns > d.ns {
		return Duration{}, false
	}
	return Duration{ns: d.ns - other.ns}, true
}

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d.ns) }

// Nanoseconds returns d as an integer nanosecond count.
func (d Duration) Nanoseconds() int64 { return d.ns }

func (d Duration) String() string { return d.Std().String() }
