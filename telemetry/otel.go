package telemetry

import (
	"context"
	"fmt"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Tracer and Meter are the module-wide OTEL handles.
var (
	Tracer = otel.Tracer("github.com/stratus-ops/stratus")
	Meter  = otel.Meter("github.com/stratus-ops/stratus")

	// PrometheusRegistry backs the /metrics endpoint; the OTEL exporter
	// registers itself here.
	PrometheusRegistry *promclient.Registry
)

// Config for OTEL initialisation.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTELEndpoint   string
	Insecure       bool
}

// Init sets up trace and metric providers and returns a combined shutdown.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	cfg = applyDefaults(cfg)

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceShutdown, err := setupTraces(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("setup traces: %w", err)
	}

	metricShutdown, err := setupMetrics(res)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("setup metrics: %w", err)
	}

	if err := initMetrics(); err != nil {
		_ = traceShutdown(ctx)
		_ = metricShutdown(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return func(ctx context.Context) error {
		terr := traceShutdown(ctx)
		merr := metricShutdown(ctx)
		if terr != nil {
			return terr
		}
		return merr
	}, nil
}

func applyDefaults(cfg Config) Config {
	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if cfg.OTELEndpoint == "" {
			cfg.OTELEndpoint = "localhost:4317"
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "stratus"
	}
	return cfg
}

func setupTraces(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTELEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	Tracer = provider.Tracer("github.com/stratus-ops/stratus")
	return provider.Shutdown, nil
}

func setupMetrics(res *resource.Resource) (func(context.Context) error, error) {
	PrometheusRegistry = promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(PrometheusRegistry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	Meter = provider.Meter("github.com/stratus-ops/stratus")
	return provider.Shutdown, nil
}
