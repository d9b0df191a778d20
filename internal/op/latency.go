package op

import (
	"context"

	"github.com/jensholdgaard/timedrun/internal/clock"
)

// Latency takes at least a fixed duration to run. It sleeps on its own
// clock, so against a virtual clock it returns immediately in real time.
type Latency[I clock.Instant[I, D], D clock.Duration[D]] struct {
	clk     clock.Clock[I, D]
	latency D
}

// NewLatency returns an operation that sleeps for latency on clk.
func NewLatency[I clock.Instant[I, D], D clock.Duration[D]](clk clock.Clock[I, D], latency D) *Latency[I, D] {
	return &Latency[I, D]{clk: clk, latency: latency}
}

// Latency returns the configured latency.
func (l *Latency[I, D]) Latency() D { return l.latency }

func (l *Latency[I, D]) Clock() clock.Clock[I, D] { return l.clk }

// Run sleeps for the configured latency. It returns the clock's Sleep
// error, or ctx.Err() if the context is done first. Clocks that
// implement clock.ContextSleeper stop sleeping on cancellation; others
// sleep the full latency.
func (l *Latency[I, D]) Run(ctx context.Context, _ struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s, ok := l.clk.(clock.ContextSleeper[D]); ok {
		return s.SleepContext(ctx, l.latency)
	}
	return l.clk.Sleep(l.latency)
}
