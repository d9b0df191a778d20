package timed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/timedrun/internal/telemetry"
)

const scope = "github.com/jensholdgaard/timedrun/internal/timed"

// Engine carries the instrumentation shared by races. The zero value is
// not usable; build one with New.
type Engine struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	races   metric.Int64Counter
	elapsed metric.Float64Histogram
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	tp     trace.TracerProvider
	mp     metric.MeterProvider
	logger *slog.Logger
}

// WithTracerProvider sets the provider for race spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *engineOptions) { o.tp = tp }
}

// WithMeterProvider sets the provider for race metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *engineOptions) { o.mp = mp }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// New builds an Engine. Unset providers default to no-ops.
func New(opts ...Option) (*Engine, error) {
	o := engineOptions{
		tp:     tracenoop.NewTracerProvider(),
		mp:     metricnoop.NewMeterProvider(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.mp.Meter(scope)
	races, err := meter.Int64Counter("timed.races",
		metric.WithDescription("Timeout races resolved, by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating races counter: %w", err)
	}
	elapsed, err := meter.Float64Histogram("timed.elapsed",
		metric.WithDescription("Elapsed time reported by timeout races."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating elapsed histogram: %w", err)
	}

	return &Engine{
		logger:  o.logger,
		tracer:  o.tp.Tracer(scope),
		races:   races,
		elapsed: elapsed,
	}, nil
}

var nop = func() *Engine {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}()

func (e *Engine) start(ctx context.Context, simulated bool) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "timed.RunWithTimeout",
		trace.WithAttributes(attribute.Bool("timed.simulated", simulated)),
	)
}

func (e *Engine) record(ctx context.Context, span trace.Span, state State, elapsed any) {
	outcome := attribute.String("outcome", state.String())
	span.SetAttributes(attribute.String("timed.outcome", state.String()))
	e.races.Add(ctx, 1, metric.WithAttributes(outcome))

	attrs := []slog.Attr{slog.String("outcome", state.String())}
	if std, ok := elapsed.(interface{ Std() time.Duration }); ok {
		d := std.Std()
		e.elapsed.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(outcome))
		attrs = append(attrs, slog.Duration("elapsed", d))
	}
	telemetry.LogWithTrace(ctx, e.logger).LogAttrs(ctx, slog.LevelDebug, "race resolved", attrs...)
}

func (e *Engine) fail(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.races.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
	telemetry.LogWithTrace(ctx, e.logger).WarnContext(ctx, "race aborted", slog.Any("error", err))
}
