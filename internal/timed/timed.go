// Package timed measures how long operations take and races them
// against a timeout on the operation's own clock.
package timed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/op"
)

// ErrMonotonicity means an operation's clock went backwards while the
// operation ran. TimedRun panics with an error wrapping it.
var ErrMonotonicity = errors.New("timed: clock went backwards")

// State is the lifecycle position of a timed race.
type State int

const (
	Idle State = iota
	Running
	Completed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the result of a race between an operation and a timeout.
//
// When State is TimedOut, Elapsed is the timeout and Output is the zero
// value. When State is Completed, Elapsed is the measured run time.
type Outcome[D any, Out any] struct {
	Elapsed D
	Output  Out
	State   State
}

// Completed reports whether the operation finished before the timeout.
func (o Outcome[D, Out]) Completed() bool { return o.State == Completed }

// TimedRun runs o synchronously and returns how long it took on o's
// clock together with its output.
//
// TimedRun panics with an error wrapping ErrMonotonicity if the clock
// reads earlier after the run than before it. That happens only if the
// clock breaks its contract or the operation rewinds it, and the
// measurement is meaningless either way.
func TimedRun[I clock.Instant[I, D], D clock.Duration[D], In, Out any](ctx context.Context, o op.Operation[I, D, In, Out], input In) (D, Out) {
	clk := o.Clock()
	start := clk.Now()
	output := o.Run(ctx, input)
	stop := clk.Now()

	elapsed, ok := stop.CheckedDurationSince(start)
	if !ok {
		panic(fmt.Errorf("%w: stop %v is before start %v", ErrMonotonicity, stop, start))
	}
	return elapsed, output
}
