package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no result exists for a target.
var ErrNotFound = errors.New("store: result not found")

// Result is one recorded timeout race for a probe target.
type Result struct {
	ID        int64     `db:"id" json:"id"`
	Target    string    `db:"target" json:"target"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
	ElapsedNS int64     `db:"elapsed_ns" json:"elapsed_ns"`
	TimedOut  bool      `db:"timed_out" json:"timed_out"`
	Error     *string   `db:"error" json:"error,omitempty"` // operation or race error, nil on success
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Elapsed returns the measured (or timed-out) duration.
func (r Result) Elapsed() time.Duration { return time.Duration(r.ElapsedNS) }

// Healthy reports whether the race completed without error.
func (r Result) Healthy() bool { return !r.TimedOut && r.Error == nil }

// ResultRepository defines probe result persistence operations.
type ResultRepository interface {
	// Save persists r and sets its ID and CreatedAt.
	Save(ctx context.Context, r *Result) error
	// Latest returns the most recent result for target, or ErrNotFound.
	Latest(ctx context.Context, target string) (*Result, error)
	// List returns up to limit results for target, newest first.
	List(ctx context.Context, target string, limit int) ([]Result, error)
}
