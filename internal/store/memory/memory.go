// Package memory provides a store.Driver that keeps probe results in
// process memory. It is the default when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/config"
	"github.com/jensholdgaard/timedrun/internal/store"
)

func init() {
	store.Register("memory", open)
}

func open(_ context.Context, cfg config.DatabaseConfig, wall clock.Wall) (*store.Repositories, error) {
	return &store.Repositories{
		Results: NewResultRepo(wall, WithRetention(cfg.MemoryRetention)),
		Closer:  store.NopCloser{},
		Ping:    func(context.Context) error { return nil },
	}, nil
}

// DefaultRetention is how many results per target a ResultRepo keeps
// unless WithRetention says otherwise.
const DefaultRetention = 1000

// ResultRepo implements store.ResultRepository in memory. It keeps only
// the newest results of each target; older ones are dropped on Save.
type ResultRepo struct {
	mu        sync.RWMutex
	nextID    int64
	byTarget  map[string][]store.Result // oldest first
	wall      clock.Wall
	retention int
}

// Option configures a ResultRepo.
type Option func(*ResultRepo)

// WithRetention caps the results kept per target. n <= 0 selects
// DefaultRetention.
func WithRetention(n int) Option {
	return func(r *ResultRepo) {
		if n > 0 {
			r.retention = n
		}
	}
}

// NewResultRepo returns an empty ResultRepo.
func NewResultRepo(wall clock.Wall, opts ...Option) *ResultRepo {
	r := &ResultRepo{
		byTarget:  make(map[string][]store.Result),
		wall:      wall,
		retention: DefaultRetention,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *ResultRepo) Save(_ context.Context, res *store.Result) error {
	if res.Target == "" {
		return fmt.Errorf("saving result: empty target")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	res.ID = r.nextID
	res.CreatedAt = r.wall.Now().UTC()
	results := append(r.byTarget[res.Target], *res)
	if extra := len(results) - r.retention; extra > 0 {
		// Copy down so the dropped prefix does not pin the backing array.
		results = append(results[:0], results[extra:]...)
	}
	r.byTarget[res.Target] = results
	return nil
}

func (r *ResultRepo) Latest(_ context.Context, target string) (*store.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := r.byTarget[target]
	if len(results) == 0 {
		return nil, fmt.Errorf("latest result for %q: %w", target, store.ErrNotFound)
	}
	latest := results[len(results)-1]
	return &latest, nil
}

func (r *ResultRepo) List(_ context.Context, target string, limit int) ([]store.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := r.byTarget[target]
	n := len(results)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]store.Result, 0, n)
	for i := len(results) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, results[i])
	}
	return out, nil
}
