package clock

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned when instant arithmetic leaves the
// representable range.
var ErrOverflow = errors.New("clock: instant overflow")

// OverflowError records the operands of an overflowing addition.
type OverflowError struct {
	Instant  any
	Duration any
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("clock: adding %v to %v overflows", e.Duration, e.Instant)
}

// Unwrap lets errors.Is match ErrOverflow.
func (e *OverflowError) Unwrap() error { return ErrOverflow }
