// Package probe periodically races configured operations against their
// timeouts on the real clock and records each outcome.
package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/config"
	"github.com/jensholdgaard/timedrun/internal/monotime"
	"github.com/jensholdgaard/timedrun/internal/op"
)

// Operation is the shape of every probed operation.
type Operation = op.Operation[monotime.Instant, monotime.Duration, struct{}, error]

// ErrNoDatabase is returned when a database target is configured but the
// store has no ping function.
var ErrNoDatabase = errors.New("probe: database target requires a database connection")

// Target is a named operation with its timeout.
type Target struct {
	Name      string
	Timeout   monotime.Duration
	Operation Operation
}

// BuildTargets turns probe configuration into runnable targets. Every
// operation sleeps on its own clone of clk. ping backs database targets
// and may be nil when none are configured.
func BuildTargets(cfg config.ProbeConfig, clk clock.Clock[monotime.Instant, monotime.Duration], ping func(context.Context) error) ([]Target, error) {
	targets := make([]Target, 0, len(cfg.Targets))
	for _, tc := range cfg.Targets {
		timeout := cfg.Timeout
		if tc.Timeout > 0 {
			timeout = tc.Timeout
		}
		d, err := monotime.NewDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("target %q timeout: %w", tc.Name, err)
		}

		var o Operation
		switch tc.Kind {
		case config.KindLatency:
			latency, err := monotime.NewDuration(tc.Latency)
			if err != nil {
				return nil, fmt.Errorf("target %q latency: %w", tc.Name, err)
			}
			o = op.NewLatency(clk.Clone(), latency)
		case config.KindFallible:
			o = op.NewFallible(clk.Clone(), tc.FailTimes)
		case config.KindDatabase:
			if ping == nil {
				return nil, fmt.Errorf("target %q: %w", tc.Name, ErrNoDatabase)
			}
			o = op.NewFunc(clk.Clone(), func(ctx context.Context, _ struct{}) error {
				return ping(ctx)
			})
		default:
			return nil, fmt.Errorf("target %q: unknown kind %q", tc.Name, tc.Kind)
		}

		targets = append(targets, Target{Name: tc.Name, Timeout: d, Operation: o})
	}
	return targets, nil
}
