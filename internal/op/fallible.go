package op

import (
	"context"
	"fmt"

	"github.com/jensholdgaard/timedrun/internal/clock"
)

// Fallible fails a fixed number of times and then succeeds, simulating
// a flaky dependency that recovers after retries.
type Fallible[I clock.Instant[I, D], D clock.Duration[D]] struct {
	clk       clock.Clock[I, D]
	remaining int
}

// NewFallible returns an operation that fails timesToFail times.
// Negative counts are treated as zero.
func NewFallible[I clock.Instant[I, D], D clock.Duration[D]](clk clock.Clock[I, D], timesToFail int) *Fallible[I, D] {
	return &Fallible[I, D]{clk: clk, remaining: max(timesToFail, 0)}
}

// Remaining reports how many failures are left.
func (f *Fallible[I, D]) Remaining() int { return f.remaining }

func (f *Fallible[I, D]) Clock() clock.Clock[I, D] { return f.clk }

// Run returns ErrInjected while failures remain, then nil.
func (f *Fallible[I, D]) Run(_ context.Context, _ struct{}) error {
	if f.remaining == 0 {
		return nil
	}
	f.remaining--
	return fmt.Errorf("%w (%d left)", ErrInjected, f.remaining)
}
