package clock

import "time"

// Wall abstracts calendar time for timestamps that are stored or shown.
// It is not monotonic; use a Clock to measure elapsed time.
type Wall interface {
	Now() time.Time
}

// SystemWall is a Wall backed by the system clock.
type SystemWall struct{}

// Now returns the current time.
func (SystemWall) Now() time.Time { return time.Now() }

// FixedWall is a Wall that always returns a fixed time.
type FixedWall struct {
	T time.Time
}

// Now returns the fixed time.
func (f FixedWall) Now() time.Time { return f.T }
