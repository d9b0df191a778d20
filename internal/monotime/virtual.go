package monotime

import (
	"log/slog"

	"github.com/jensholdgaard/timedrun/internal/clock"
)

// Virtual is a Clock whose time only moves when its own Sleep is called.
// Sleep never blocks, so arbitrarily long latencies are simulated
// instantly.
//
// Virtual is not safe for concurrent use. Give each goroutine its own
// copy via Clone.
type Virtual struct {
	now  Instant
	opts options
}

var (
	_ clock.Clock[Instant, Duration] = (*Virtual)(nil)
	_ clock.Simulated                = (*Virtual)(nil)
)

// NewVirtual returns a virtual clock reading start.
func NewVirtual(start Instant, opts ...Option) *Virtual {
	return &Virtual{now: start, opts: buildOptions(opts)}
}

// NewVirtualNow returns a virtual clock starting at the real clock's
// current reading.
func NewVirtualNow(opts ...Option) *Virtual {
	return NewVirtual(NewReal().Now(), opts...)
}

// Now returns the held instant.
func (v *Virtual) Now() Instant { return v.now }

// Sleep advances the held instant by d.
func (v *Virtual) Sleep(d Duration) error {
	next, ok := v.now.CheckedAdd(d)
	if ok {
		v.now = next
		return nil
	}
	if v.opts.policy == OverflowSaturate {
		v.opts.logger.Warn("virtual clock saturated",
			slog.String("now", v.now.String()),
			slog.Duration("duration", d.Std()),
		)
		v.now = MaxInstant
		return nil
	}
	return &clock.OverflowError{Instant: v.now, Duration: d}
}

// Clone returns a copy reading the same instant.
func (v *Virtual) Clone() clock.Clock[Instant, Duration] {
	cp := *v
	return &cp
}

// Simulated reports true: Sleep never suspends the caller.
func (v *Virtual) Simulated() bool { return true }
