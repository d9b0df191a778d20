package monotime

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// OverflowPolicy decides what Sleep does when the target instant is not
// representable.
type OverflowPolicy int

const (
	// OverflowError leaves the clock untouched and returns a
	// *clock.OverflowError. This is the default.
	OverflowError OverflowPolicy = iota
	// OverflowSaturate pins the clock at MaxInstant and logs a warning.
	OverflowSaturate
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowError:
		return "error"
	case OverflowSaturate:
		return "saturate"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy parses the configuration spelling of a policy.
// The empty string selects the default.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return OverflowError, nil
	case "saturate":
		return OverflowSaturate, nil
	default:
		return 0, fmt.Errorf("unknown overflow policy %q: must be \"error\" or \"saturate\"", s)
	}
}

type options struct {
	policy OverflowPolicy
	logger *slog.Logger
	sleep  func(time.Duration)
}

// Option configures a Real or Virtual clock.
type Option func(*options)

// WithOverflowPolicy selects how Sleep handles overflow.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the logger used for contained failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSleepFunc replaces the platform sleep used by Real. Virtual
// ignores it.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(o *options) { o.sleep = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		policy: OverflowError,
		logger: slog.Default(),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
