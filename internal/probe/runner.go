package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/store"
	"github.com/jensholdgaard/timedrun/internal/timed"
)

// Runner sweeps its targets through the timed engine.
type Runner struct {
	engine  *timed.Engine
	results store.ResultRepository
	wall    clock.Wall
	logger  *slog.Logger
	targets []Target

	mu     sync.RWMutex
	latest map[string]store.Result
}

// NewRunner creates a Runner. A nil engine uses an uninstrumented one.
func NewRunner(engine *timed.Engine, results store.ResultRepository, wall clock.Wall, logger *slog.Logger, targets ...Target) *Runner {
	return &Runner{
		engine:  engine,
		results: results,
		wall:    wall,
		logger:  logger,
		targets: targets,
		latest:  make(map[string]store.Result, len(targets)),
	}
}

// RunOnce races every target once, concurrently, and persists the
// results. Results are returned in target order. A failed save does not
// disturb the other targets; every save error is joined into the
// returned error and the affected results are left zero.
func (r *Runner) RunOnce(ctx context.Context) ([]store.Result, error) {
	results := make([]store.Result, len(r.targets))
	saveErrs := make([]error, len(r.targets))

	g := new(errgroup.Group)
	for i, t := range r.targets {
		g.Go(func() error {
			res := r.probe(ctx, t)
			if err := r.results.Save(ctx, &res); err != nil {
				saveErrs[i] = fmt.Errorf("recording %q: %w", t.Name, err)
				return nil
			}
			results[i] = res

			r.mu.Lock()
			r.latest[t.Name] = res
			r.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(saveErrs...)
}

func (r *Runner) probe(ctx context.Context, t Target) store.Result {
	res := store.Result{Target: t.Name, StartedAt: r.wall.Now().UTC()}

	out, err := timed.Race(ctx, r.engine, t.Operation, struct{}{}, t.Timeout)
	switch {
	case err != nil:
		msg := err.Error()
		res.Error = &msg
		r.logger.WarnContext(ctx, "probe race failed",
			slog.String("target", t.Name),
			slog.Any("error", err),
		)
	case out.State == timed.TimedOut:
		res.TimedOut = true
		res.ElapsedNS = out.Elapsed.Nanoseconds()
		r.logger.WarnContext(ctx, "probe timed out",
			slog.String("target", t.Name),
			slog.Duration("timeout", out.Elapsed.Std()),
		)
	default:
		res.ElapsedNS = out.Elapsed.Nanoseconds()
		if out.Output != nil {
			msg := out.Output.Error()
			res.Error = &msg
		}
		r.logger.DebugContext(ctx, "probe completed",
			slog.String("target", t.Name),
			slog.Duration("elapsed", out.Elapsed.Std()),
			slog.Bool("healthy", out.Output == nil),
		)
	}
	return res
}

// Run calls RunOnce immediately and then every interval until ctx is done.
// Sweep failures are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "probe sweep failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Latest returns the most recent result recorded by this runner.
func (r *Runner) Latest(target string) (store.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.latest[target]
	return res, ok
}

// Check reports an error naming every target whose latest result is
// unhealthy. Targets that have not run yet are ignored. It has the shape
// of a health.Checker function.
func (r *Runner) Check(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var failing []string
	for _, t := range r.targets {
		if res, ok := r.latest[t.Name]; ok && !res.Healthy() {
			failing = append(failing, t.Name)
		}
	}
	if len(failing) > 0 {
		return fmt.Errorf("unhealthy probe targets: %v", failing)
	}
	return nil
}
