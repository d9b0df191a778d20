package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/store"
)

// ResultRepo implements store.ResultRepository with sqlx.
type ResultRepo struct {
	db   *sqlx.DB
	wall clock.Wall
}

// NewResultRepo returns a new ResultRepo.
func NewResultRepo(db *sqlx.DB, wall clock.Wall) *ResultRepo {
	return &ResultRepo{db: db, wall: wall}
}

func (r *ResultRepo) Save(ctx context.Context, res *store.Result) error {
	query := `INSERT INTO probe_results (target, started_at, elapsed_ns, timed_out, error, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           RETURNING id`
	res.CreatedAt = r.wall.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		res.Target, res.StartedAt.UTC(), res.ElapsedNS, res.TimedOut, res.Error, res.CreatedAt,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("saving result for %q: %w", res.Target, err)
	}
	return nil
}

func (r *ResultRepo) Latest(ctx context.Context, target string) (*store.Result, error) {
	var res store.Result
	err := r.db.GetContext(ctx, &res,
		`SELECT * FROM probe_results WHERE target = $1 ORDER BY id DESC LIMIT 1`, target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest result for %q: %w", target, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest result for %q: %w", target, err)
	}
	return &res, nil
}

func (r *ResultRepo) List(ctx context.Context, target string, limit int) ([]store.Result, error) {
	var results []store.Result
	var err error
	if limit > 0 {
		err = r.db.SelectContext(ctx, &results,
			`SELECT * FROM probe_results WHERE target = $1 ORDER BY id DESC LIMIT $2`, target, limit)
	} else {
		err = r.db.SelectContext(ctx, &results,
			`SELECT * FROM probe_results WHERE target = $1 ORDER BY id DESC`, target)
	}
	if err != nil {
		return nil, fmt.Errorf("listing results for %q: %w", target, err)
	}
	return results, nil
}
