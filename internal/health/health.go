// Package health serves liveness and readiness endpoints. Readiness
// checks are raced against a deadline so a hung dependency reports
// "timeout" instead of stalling the probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/monotime"
	"github.com/jensholdgaard/timedrun/internal/op"
	"github.com/jensholdgaard/timedrun/internal/timed"
)

// DefaultCheckTimeout bounds each readiness check.
const DefaultCheckTimeout = 5 * time.Second

// Status represents a health check result.
type Status struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Checker defines a named health check function.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler provides HTTP health check endpoints.
type Handler struct {
	mu       sync.RWMutex
	ready    bool
	checkers []Checker

	wall    clock.Wall
	engine  *timed.Engine
	clk     clock.Clock[monotime.Instant, monotime.Duration]
	timeout monotime.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithEngine records readiness races on e.
func WithEngine(e *timed.Engine) HandlerOption {
	return func(h *Handler) { h.engine = e }
}

// WithClock sets the clock readiness checks are timed on.
func WithClock(clk clock.Clock[monotime.Instant, monotime.Duration]) HandlerOption {
	return func(h *Handler) { h.clk = clk }
}

// WithCheckTimeout overrides DefaultCheckTimeout.
func WithCheckTimeout(d monotime.Duration) HandlerOption {
	return func(h *Handler) { h.timeout = d }
}

// NewHandler creates a new health handler with the given checkers.
func NewHandler(wall clock.Wall, checkers []Checker, opts ...HandlerOption) *Handler {
	h := &Handler{
		checkers: checkers,
		wall:     wall,
		clk:      monotime.NewReal(),
		timeout:  monotime.MustDuration(DefaultCheckTimeout),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetReady marks the service as ready to receive traffic.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// LivenessHandler returns HTTP 200 if the process is alive.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Status{
			Status:    "ok",
			Timestamp: h.timestamp(),
		})
	}
}

// ReadinessHandler returns HTTP 200 if the service is ready and every
// check passes within the check timeout.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		ready := h.ready
		h.mu.RUnlock()

		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, Status{
				Status:    "not_ready",
				Timestamp: h.timestamp(),
			})
			return
		}

		checks := make(map[string]string, len(h.checkers))
		allOK := true
		for _, c := range h.checkers {
			result := h.run(r.Context(), c)
			checks[c.Name] = result
			if result != "ok" {
				allOK = false
			}
		}

		status := "ready"
		code := http.StatusOK
		if !allOK {
			status = "not_ready"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, Status{
			Status:    status,
			Checks:    checks,
			Timestamp: h.timestamp(),
		})
	}
}

func (h *Handler) run(ctx context.Context, c Checker) string {
	var check op.Operation[monotime.Instant, monotime.Duration, struct{}, error] = op.NewFunc(h.clk.Clone(),
		func(ctx context.Context, _ struct{}) error { return c.Check(ctx) },
	)
	out, err := timed.Race(ctx, h.engine, check, struct{}{}, h.timeout)
	switch {
	case err != nil:
		return err.Error()
	case out.State == timed.TimedOut:
		return "timeout"
	case out.Output != nil:
		return out.Output.Error()
	default:
		return "ok"
	}
}

func (h *Handler) timestamp() string {
	return h.wall.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
