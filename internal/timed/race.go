package timed

import (
	"context"
	"fmt"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/op"
)

type branch int

const (
	watchdog branch = iota
	worker
)

type report[D any, Out any] struct {
	from     branch
	elapsed  D
	output   Out
	err      error
	panicked bool
	panicVal any
}

// TimedRunWithTimeout races o against timeout using an uninstrumented
// engine. See Race.
func TimedRunWithTimeout[I clock.Instant[I, D], D clock.Duration[D], In, Out any](ctx context.Context, o op.Operation[I, D, In, Out], input In, timeout D) (Outcome[D, Out], error) {
	return Race(ctx, nop, o, input, timeout)
}

// Race runs o on one goroutine and sleeps for timeout on a clone of o's
// clock on another. Both report into a channel with room for both
// messages, so the losing goroutine never blocks on its send.
//
// On a real clock the first report wins and Race returns without waiting
// for the other branch. The worker's context is cancelled on return;
// operations that ignore it keep running in the background with no
// effect on the outcome.
//
// A simulated clock never suspends, so arrival order carries no timing
// information. Race then waits for both branches and resolves in clock
// time: the operation completes iff its elapsed time is strictly less
// than timeout, and Elapsed is exactly min(elapsed, timeout).
//
// A panic in the operation, including a monotonicity violation, is
// re-raised on the calling goroutine when the worker's report is
// consumed. A watchdog Sleep failure, such as an overflowing deadline,
// is returned as an error. If ctx ends first, Race returns ctx.Err()
// and an outcome in the Running state. On a simulated clock it first
// cancels the worker and waits for it, so the operation and its clock
// can be reused once Race returns; such an operation must therefore
// return when its context is cancelled.
func Race[I clock.Instant[I, D], D clock.Duration[D], In, Out any](ctx context.Context, e *Engine, o op.Operation[I, D, In, Out], input In, timeout D) (Outcome[D, Out], error) {
	if e == nil {
		e = nop
	}
	simulated := clock.IsSimulated(o.Clock())
	ctx, span := e.start(ctx, simulated)
	defer span.End()

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan report[D, Out], 2)
	watchdogClock := o.Clock().Clone()

	go func() {
		results <- report[D, Out]{from: watchdog, err: watchdogClock.Sleep(timeout)}
	}()

	go func() {
		r := report[D, Out]{from: worker}
		defer func() {
			if p := recover(); p != nil {
				r.panicked, r.panicVal = true, p
			}
			results <- r
		}()
		r.elapsed, r.output = TimedRun(workCtx, o, input)
	}()

	want := 1
	if simulated {
		want = 2
	}
	var reports [2]*report[D, Out]
	for got := 0; got < want; got++ {
		select {
		case r := <-results:
			reports[r.from] = &r
		case <-ctx.Done():
			err := ctx.Err()
			if simulated {
				// The worker may still be advancing the operation's clock.
				cancel()
				for reports[worker] == nil {
					r := <-results
					reports[r.from] = &r
				}
				if w := reports[worker]; w.panicked {
					panic(w.panicVal)
				}
			}
			e.fail(ctx, span, err)
			return Outcome[D, Out]{State: Running}, err
		}
	}

	w, wd := reports[worker], reports[watchdog]
	if w != nil && w.panicked {
		panic(w.panicVal)
	}
	if wd != nil && wd.err != nil {
		err := fmt.Errorf("timeout watchdog: %w", wd.err)
		e.fail(ctx, span, err)
		return Outcome[D, Out]{State: Running}, err
	}

	var out Outcome[D, Out]
	switch {
	case w != nil && (!simulated || w.elapsed.Compare(timeout) < 0):
		out = Outcome[D, Out]{Elapsed: w.elapsed, Output: w.output, State: Completed}
	default:
		out = Outcome[D, Out]{Elapsed: timeout, State: TimedOut}
	}
	e.record(ctx, span, out.State, out.Elapsed)
	return out, nil
}
