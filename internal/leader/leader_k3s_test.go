package leader_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/k3s"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/config"
	"github.com/jensholdgaard/timedrun/internal/leader"
	"github.com/jensholdgaard/timedrun/internal/monotime"
	"github.com/jensholdgaard/timedrun/internal/probe"
	"github.com/jensholdgaard/timedrun/internal/store/memory"
)

// replica is one timeprobe instance: its own runner and result store,
// competing for the shared lease.
type replica struct {
	name    string
	results *memory.ResultRepo
	elector *leader.Elector
}

func newReplica(t *testing.T, name string, cfg config.LeaderElectionConfig) *replica {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	targets, err := probe.BuildTargets(config.ProbeConfig{
		Timeout: time.Second,
		Targets: []config.TargetConfig{{Name: "tick", Kind: config.KindLatency, Latency: time.Millisecond}},
	}, monotime.NewReal(), nil)
	if err != nil {
		t.Fatalf("BuildTargets: %v", err)
	}

	r := &replica{name: name, results: memory.NewResultRepo(clock.SystemWall{})}
	runner := probe.NewRunner(nil, r.results, clock.SystemWall{}, logger, targets...)

	r.elector, err = leader.New(cfg, logger,
		func(ctx context.Context) { _ = runner.Run(ctx, 100*time.Millisecond) },
		nil,
		leader.WithIdentity(name),
	)
	if err != nil {
		t.Fatalf("leader.New(%s): %v", name, err)
	}
	return r
}

func (r *replica) recorded(t *testing.T) int {
	t.Helper()
	all, err := r.results.List(context.Background(), "tick", 0)
	if err != nil {
		t.Fatalf("List(%s): %v", r.name, err)
	}
	return len(all)
}

// TestLeaderElection_K3s runs two replicas against a real API server and
// checks that only the lease holder records probe results. Skipped in
// short mode.
func TestLeaderElection_K3s(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping k3s integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := k3s.Run(ctx, "rancher/k3s:v1.31.6-k3s1")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting k3s container: %v", err)
	}

	kubeConfigYaml, err := ctr.GetKubeConfig(ctx)
	if err != nil {
		t.Fatalf("getting kubeconfig: %v", err)
	}
	restCfg, err := clientcmd.RESTConfigFromKubeConfig(kubeConfigYaml)
	if err != nil {
		t.Fatalf("building rest config: %v", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		t.Fatalf("creating kubernetes client: %v", err)
	}

	origFactory := leader.ClientFactory
	leader.ClientFactory = func() (kubernetes.Interface, error) { return clientset, nil }
	t.Cleanup(func() { leader.ClientFactory = origFactory })

	cfg := config.LeaderElectionConfig{
		Enabled:        true,
		LeaseName:      "timeprobe-test-leader",
		LeaseNamespace: "default",
		LeaseDuration:  5 * time.Second,
		RenewDeadline:  3 * time.Second,
		RetryPeriod:    1 * time.Second,
	}
	replicas := []*replica{newReplica(t, "replica-a", cfg), newReplica(t, "replica-b", cfg)}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{}, len(replicas))
	for _, r := range replicas {
		go func() {
			r.elector.Run(runCtx)
			done <- struct{}{}
		}()
	}

	// Wait until one replica leads and has swept a few times.
	var leaderReplica, follower *replica
	deadline := time.After(60 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for leaderReplica == nil {
		for i, r := range replicas {
			if r.elector.Leading() && r.recorded(t) >= 3 {
				leaderReplica, follower = r, replicas[1-i]
			}
		}
		if leaderReplica != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a leader to record results")
		case <-ticker.C:
		}
	}

	if follower.elector.Leading() {
		t.Errorf("both %s and %s report leadership", leaderReplica.name, follower.name)
	}
	if n := follower.recorded(t); n != 0 {
		t.Errorf("follower %s recorded %d results, want 0", follower.name, n)
	}
	t.Logf("%s leads with %d results", leaderReplica.name, leaderReplica.recorded(t))

	stop()
	for range replicas {
		select {
		case <-done:
		case <-time.After(15 * time.Second):
			t.Fatal("timed out waiting for electors to stop")
		}
	}
}
