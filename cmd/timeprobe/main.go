package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jensholdgaard/timedrun/internal/clock"
	"github.com/jensholdgaard/timedrun/internal/config"
	"github.com/jensholdgaard/timedrun/internal/health"
	"github.com/jensholdgaard/timedrun/internal/leader"
	"github.com/jensholdgaard/timedrun/internal/monotime"
	"github.com/jensholdgaard/timedrun/internal/probe"
	"github.com/jensholdgaard/timedrun/internal/store"
	"github.com/jensholdgaard/timedrun/internal/telemetry"
	"github.com/jensholdgaard/timedrun/internal/timed"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/timedrun/internal/store/memory"
	_ "github.com/jensholdgaard/timedrun/internal/store/postgres"
	_ "github.com/jensholdgaard/timedrun/internal/store/sqlstore"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	once := flag.Bool("once", false, "run a single probe sweep, print the results and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath, *once); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp := setupTelemetry(ctx, cfg.Telemetry, slog.Default())
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	wall := clock.SystemWall{}

	policy, err := cfg.Clock.OverflowPolicy()
	if err != nil {
		return err
	}
	clk := monotime.NewReal(
		monotime.WithOverflowPolicy(policy),
		monotime.WithLogger(logger),
	)

	engine, err := timed.New(
		timed.WithTracerProvider(tp.TracerProvider),
		timed.WithMeterProvider(tp.MeterProvider),
		timed.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("creating timing engine: %w", err)
	}

	repos, err := store.Open(ctx, cfg.Database, wall)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "opened result store", slog.String("driver", cfg.Database.Driver))

	targets, err := probe.BuildTargets(cfg.Probe, clk, repos.Ping)
	if err != nil {
		return fmt.Errorf("building probe targets: %w", err)
	}
	runner := probe.NewRunner(engine, repos.Results, wall, logger, targets...)

	if once {
		results, sweepErr := runner.RunOnce(ctx)
		if sweepErr != nil {
			return fmt.Errorf("probe sweep: %w", sweepErr)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	healthHandler := health.NewHandler(wall,
		[]health.Checker{
			{Name: "database", Check: repos.Ping},
			{Name: "probes", Check: runner.Check},
		},
		health.WithEngine(engine),
		health.WithClock(clk),
	)

	// Health endpoints run on all replicas.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())
	mux.HandleFunc("/results", resultsHandler(runner, targets))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting health server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "health server error", slog.Any("error", listenErr))
		}
	}()

	// sweep is the work only the leader should do.
	sweep := func(ctx context.Context) {
		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "timeprobe is running",
			slog.String("version", version),
			slog.Int("targets", len(targets)),
			slog.String("overflow", policy.String()),
		)

		if runErr := runner.Run(ctx, cfg.Probe.Interval); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.ErrorContext(ctx, "probe loop stopped", slog.Any("error", runErr))
		}

		healthHandler.SetReady(false)
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		elector, leaderErr := leader.New(cfg.LeaderElection, logger, sweep, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		})
		if leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
		elector.Run(ctx)
	} else {
		sweep(ctx)
		logger.Info("shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// setupTelemetry falls back to a provider that exports nothing when
// telemetry cannot be set up. Running without an endpoint is the default
// and is not worth a warning.
func setupTelemetry(ctx context.Context, cfg config.TelemetryConfig, log *slog.Logger) *telemetry.Provider {
	tp, err := telemetry.Setup(ctx, cfg)
	switch {
	case errors.Is(err, telemetry.ErrNoEndpoint):
		log.InfoContext(ctx, "no OTLP endpoint configured, telemetry export disabled")
		return telemetry.NewNopProvider()
	case err != nil:
		log.WarnContext(ctx, "telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		return telemetry.NewNopProvider()
	}
	return tp
}

// resultsHandler serves the latest result of every target this replica
// has probed.
func resultsHandler(runner *probe.Runner, targets []probe.Target) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest := make([]store.Result, 0, len(targets))
		for _, t := range targets {
			if res, ok := runner.Latest(t.Name); ok {
				latest = append(latest, res)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(latest)
	}
}
