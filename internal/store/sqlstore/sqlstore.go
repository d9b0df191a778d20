// Package sqlstore provides a store.Driver for Postgres that goes through
// plain database/sql with OTEL instrumentation via otelsql, for callers
// that want the results table without sqlx. It shares its schema with the
// postgres driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq" // postgres driver
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/config"
	"github.com/jensholdgaard/timedrun/internal/store"
	"github.com/jensholdgaard/timedrun/internal/store/postgres"
)

func init() {
	store.Register("sql", open)
}

func open(ctx context.Context, cfg config.DatabaseConfig, wall clock.Wall) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &store.Repositories{
		Results: NewResultRepo(db, wall),
		Closer:  db,
		Ping:    db.PingContext,
	}, nil
}

// Connect opens and verifies a Postgres connection via database/sql.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := otelsql.Open("postgres", cfg.DSN(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("opening sql database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sql database: %w", err)
	}

	return db, nil
}

const resultColumns = `id, target, started_at, elapsed_ns, timed_out, error, created_at`

// ResultRepo implements store.ResultRepository using database/sql.
type ResultRepo struct {
	db   *sql.DB
	wall clock.Wall
}

// NewResultRepo returns a new ResultRepo.
func NewResultRepo(db *sql.DB, wall clock.Wall) *ResultRepo {
	return &ResultRepo{db: db, wall: wall}
}

func (r *ResultRepo) Save(ctx context.Context, res *store.Result) error {
	res.CreatedAt = r.wall.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO probe_results (target, started_at, elapsed_ns, timed_out, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		res.Target, res.StartedAt.UTC(), res.ElapsedNS, res.TimedOut, res.Error, res.CreatedAt,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("saving result for %q: %w", res.Target, err)
	}
	return nil
}

func (r *ResultRepo) Latest(ctx context.Context, target string) (*store.Result, error) {
	res := &store.Result{}
	err := scan(r.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM probe_results WHERE target = $1 ORDER BY id DESC LIMIT 1`, target,
	), res)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest result for %q: %w", target, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest result for %q: %w", target, err)
	}
	return res, nil
}

func (r *ResultRepo) List(ctx context.Context, target string, limit int) ([]store.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM probe_results WHERE target = $1 ORDER BY id DESC`
	args := []any{target}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing results for %q: %w", target, err)
	}
	defer rows.Close()

	var results []store.Result
	for rows.Next() {
		var res store.Result
		if err := scan(rows, &res); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner, res *store.Result) error {
	return s.Scan(&res.ID, &res.Target, &res.StartedAt, &res.ElapsedNS, &res.TimedOut, &res.Error, &res.CreatedAt)
}
