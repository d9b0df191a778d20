// Package leader elects one replica, through a Kubernetes Lease, to sweep
// probe targets. Followers keep serving health endpoints but record
// nothing.
package leader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/jensholdgaard/timedrun/internal/config"
)

// ClientFactory creates a Kubernetes clientset.
// Extracted as a variable for testing.
var ClientFactory = func() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("building in-cluster config: %w", err)
	}
	return kubernetes.NewForConfig(cfg)
}

// podIdentity returns POD_NAME when set, otherwise the hostname.
func podIdentity() string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// Elector competes for the lease and runs work while it holds it.
type Elector struct {
	elector *leaderelection.LeaderElector
	id      string
	leading atomic.Bool
}

// Option configures an Elector.
type Option func(*Elector)

// WithIdentity overrides the identity taken from POD_NAME or the hostname.
func WithIdentity(id string) Option {
	return func(e *Elector) { e.id = id }
}

// New prepares an Elector. work is started each time this replica gains
// the lease and must return once its context is done. onLost runs when
// the lease is lost or released. Lease timings that client-go would
// reject are reported here.
func New(cfg config.LeaderElectionConfig, logger *slog.Logger, work func(ctx context.Context), onLost func(), opts ...Option) (*Elector, error) {
	e := &Elector{id: podIdentity()}
	for _, o := range opts {
		o(e)
	}

	client, err := ClientFactory()
	if err != nil {
		return nil, fmt.Errorf("leader election client: %w", err)
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      cfg.LeaseName,
			Namespace: cfg.LeaseNamespace,
		},
		Client:     client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{Identity: e.id},
	}

	log := logger.With(slog.String("identity", e.id), slog.String("lease", cfg.LeaseName))
	e.elector, err = leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   cfg.LeaseDuration,
		RenewDeadline:   cfg.RenewDeadline,
		RetryPeriod:     cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Name:            cfg.LeaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				e.leading.Store(true)
				log.InfoContext(ctx, "acquired leadership, starting probe sweeps")
				work(ctx)
			},
			OnStoppedLeading: func() {
				e.leading.Store(false)
				log.Info("stopped leading")
				if onLost != nil {
					onLost()
				}
			},
			OnNewLeader: func(id string) {
				if id != e.id {
					log.Info("following leader", slog.String("leader", id))
				}
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring leader election: %w", err)
	}
	return e, nil
}

// Identity is the name this replica writes into the lease.
func (e *Elector) Identity() string { return e.id }

// Leading reports whether work is currently running under the lease.
func (e *Elector) Leading() bool { return e.leading.Load() }

// Run campaigns for the lease until ctx is done, then releases it.
func (e *Elector) Run(ctx context.Context) {
	e.elector.Run(ctx)
}
