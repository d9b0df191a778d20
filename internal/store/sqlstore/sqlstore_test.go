package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/store"
	"github.com/jensholdgaard/timedrun/internal/store/postgres"
	"github.com/jensholdgaard/timedrun/internal/store/sqlstore"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("timeprobe_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db
}

func TestResultRepo(t *testing.T) {
	db := newTestDB(t)
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := sqlstore.NewResultRepo(db, clock.FixedWall{T: fixed})
	ctx := context.Background()

	if _, err := repo.Latest(ctx, "db"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Latest on empty table error = %v, want ErrNotFound", err)
	}

	msg := "connection refused"
	for i, res := range []*store.Result{
		{Target: "db", StartedAt: fixed, ElapsedNS: int64(time.Millisecond)},
		{Target: "db", StartedAt: fixed, ElapsedNS: int64(2 * time.Millisecond), Error: &msg},
		{Target: "db", StartedAt: fixed, ElapsedNS: int64(time.Second), TimedOut: true},
	} {
		if err := repo.Save(ctx, res); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	latest, err := repo.Latest(ctx, "db")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.TimedOut || latest.Elapsed() != time.Second || !latest.CreatedAt.Equal(fixed) {
		t.Errorf("Latest = %+v, want the timed-out result", latest)
	}

	two, err := repo.List(ctx, "db", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(two) != 2 || two[1].Error == nil || *two[1].Error != msg {
		t.Errorf("List(2) = %+v, want newest two with the failure second", two)
	}

	all, err := repo.List(ctx, "db", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) returned %d results, want 3", len(all))
	}
}
