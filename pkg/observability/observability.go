// Package observability provides OpenTelemetry tracing and RED metrics for registry operations.
//
//	p, err := observability.New(ctx, &cfg.Telemetry)
//	defer p.Shutdown(ctx)
//
//	ctx, done := p.TrackOperation(ctx, "registry.update", observability.RegistryOperation(name, "update")...)
//	err = doWork(ctx)
//	done(err)
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "eventgate"

// Config selects the OTLP collector. Fields are read from EVENTGATE_OTEL_* by the config package.
type Config struct {
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"eventgate"`
	ServiceVersion string        `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	OTLPEndpoint   string        `env:"ENDPOINT" envDefault:"localhost:4317"` // gRPC
	SampleRate     float64       `env:"SAMPLE_RATE" envDefault:"1.0"`
	BatchTimeout   time.Duration `env:"BATCH_TIMEOUT" envDefault:"5s"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL" envDefault:"15s"`
	Enabled        bool          `env:"ENABLED" envDefault:"false"`
	Insecure       bool          `env:"INSECURE" envDefault:"false"`
}

// Provider owns the trace and metric providers and the registry instruments.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	outcomes metric.Int64Counter
}

// New creates a provider and installs it globally. A nil or disabled config yields a provider
// that traces through the global tracer and records no metrics.
func New(ctx context.Context, config *Config) (*Provider, error) {
	logger := slog.Default().With("component", "observability")
	if config == nil || !config.Enabled {
		logger.DebugContext(ctx, "observability disabled")
		return &Provider{tracer: otel.Tracer(instrumentationName), logger: logger}, nil
	}

	// No schema URL: merging with the SDK's default resource fails when semconv versions differ.
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, config, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	mp, err := newMeterProvider(ctx, config, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p, err := newProvider(tp, mp, config.ServiceVersion)
	if err != nil {
		return nil, err
	}
	p.logger = logger
	logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

// newProvider builds the instruments on explicit providers without touching the globals.
func newProvider(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider, version string) (*Provider, error) {
	p := &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(version)),
		logger:         slog.Default().With("component", "observability"),
	}
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(version))

	var err error
	if p.requests, err = meter.Int64Counter("eventgate.requests.total",
		metric.WithDescription("Registry operations started"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if p.errors, err = meter.Int64Counter("eventgate.errors.total",
		metric.WithDescription("Registry operations that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if p.duration, err = meter.Float64Histogram("eventgate.request.duration",
		metric.WithDescription("Registry operation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	if p.outcomes, err = meter.Int64Counter("eventgate.evolution.outcomes.total",
		metric.WithDescription("Schema evolution outcomes by status and bump level"),
		metric.WithUnit("{outcome}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create outcome counter: %w", err)
	}
	return p, nil
}

func newTracerProvider(ctx context.Context, config *Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
		sdktrace.WithSampler(sampler(config.SampleRate)),
	), nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func newMeterProvider(ctx context.Context, config *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := config.MetricInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	), nil
}

// Shutdown flushes and stops the providers. Failures are logged.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer is handed to the evolution engine so validation spans nest under registry spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// RecordOutcome counts one evolution outcome.
func (p *Provider) RecordOutcome(ctx context.Context, status, level string, attrs ...attribute.KeyValue) {
	if p.outcomes == nil {
		return
	}
	all := append(attrs[:len(attrs):len(attrs)], AttrOutcome.String(status), AttrBumpLevel.String(level))
	p.outcomes.Add(ctx, 1, metric.WithAttributes(all...))
}

// TrackOperation starts a span and the RED bookkeeping for one operation.
// The returned function must be called with the operation's error when it completes.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	set := metric.WithAttributes(attrs...)
	if p.requests != nil {
		p.requests.Add(ctx, 1, set)
	}

	return ctx, func(err error) {
		if p.duration != nil {
			p.duration.Record(ctx, time.Since(start).Seconds(), set)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if p.errors != nil {
				p.errors.Add(ctx, 1, metric.WithAttributes(
					append(attrs[:len(attrs):len(attrs)], attribute.String("error.type", fmt.Sprintf("%T", err)))...,
				))
			}
		}
		span.End()
	}
}
