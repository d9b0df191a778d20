// Package op defines units of work whose execution time is under test,
// and a few reference operations used by tests and the probe runner.
//
// Every operation owns a clock. Code that needs to simulate latency
// sleeps on that clock, so the same operation can run against real
// system time or a virtual clock.
package op

import (
	"context"
	"errors"

	"github.com/jensholdgaard/timedrun/internal/clock"
)

// ErrInjected is returned by Fallible while it still has failures left.
var ErrInjected = errors.New("op: injected failure")

// Operation is a unit of work parameterized by a clock family.
//
// Run may be called on a goroutine other than the one that created the
// operation. Implementations should return early once ctx is done.
type Operation[I clock.Instant[I, D], D clock.Duration[D], In, Out any] interface {
	// Clock returns the clock the operation sleeps on.
	Clock() clock.Clock[I, D]

	// Run executes the operation once.
	Run(ctx context.Context, input In) Out
}

// Func adapts a clock and a function into an Operation.
type Func[I clock.Instant[I, D], D clock.Duration[D], In, Out any] struct {
	clk clock.Clock[I, D]
	fn  func(ctx context.Context, input In) Out
}

// NewFunc returns an Operation that calls fn.
func NewFunc[I clock.Instant[I, D], D clock.Duration[D], In, Out any](clk clock.Clock[I, D], fn func(ctx context.Context, input In) Out) *Func[I, D, In, Out] {
	return &Func[I, D, In, Out]{clk: clk, fn: fn}
}

func (f *Func[I, D, In, Out]) Clock() clock.Clock[I, D] { return f.clk }

func (f *Func[I, D, In, Out]) Run(ctx context.Context, input In) Out { return f.fn(ctx, input) }
