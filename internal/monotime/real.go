package monotime

import (
	"context"
	"log/slog"
	"time"

	"github.com/jensholdgaard/timedrun/internal/clock"
)

// epoch anchors every Real instant in this process. time.Since uses the
// monotonic reading captured here, so Real.Now never goes backwards.
var epoch = time.Now()

// Real is a Clock backed by the operating system's monotonic timer.
// It holds no mutable state and is safe for concurrent use.
type Real struct {
	opts options
}

var (
	_ clock.Clock[Instant, Duration] = (*Real)(nil)
	_ clock.ContextSleeper[Duration] = (*Real)(nil)
)

// NewReal returns a real clock.
func NewReal(opts ...Option) *Real {
	return &Real{opts: buildOptions(opts)}
}

// Now returns the time elapsed since the process epoch.
func (r *Real) Now() Instant {
	d := time.Since(epoch)
	if d < 0 {
		d = 0
	}
	return Instant{ns: int64(d)}
}

// Sleep suspends the calling goroutine for at least d.
//
// A panic raised by the platform sleep is recovered and logged; Sleep
// then returns as if d had elapsed. Overflow of the wake-up instant is
// handled according to the clock's OverflowPolicy.
func (r *Real) Sleep(d Duration) error {
	if err := r.checkDeadline(d); err != nil {
		return err
	}
	r.guardedSleep(d.Std())
	return nil
}

// SleepContext is Sleep that returns ctx.Err() as soon as ctx is done.
// It waits on a runtime timer and does not use WithSleepFunc.
func (r *Real) SleepContext(ctx context.Context, d Duration) error {
	if err := r.checkDeadline(d); err != nil {
		return err
	}
	t := time.NewTimer(d.Std())
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Real) checkDeadline(d Duration) error {
	now := r.Now()
	if _, ok := now.CheckedAdd(d); ok {
		return nil
	}
	if r.opts.policy != OverflowSaturate {
		return &clock.OverflowError{Instant: now, Duration: d}
	}
	r.opts.logger.Warn("sleep deadline overflows, sleeping anyway",
		slog.String("now", now.String()),
		slog.Duration("duration", d.Std()),
	)
	return nil
}

func (r *Real) guardedSleep(d time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			r.opts.logger.Error("platform sleep panicked",
				slog.Any("panic", p),
				slog.Duration("duration", d),
			)
		}
	}()
	r.opts.sleep(d)
}

// Clone returns an equivalent real clock.
func (r *Real) Clone() clock.Clock[Instant, Duration] {
	return &Real{opts: r.opts}
}
