package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	defaultOTLPEndpoint   = "localhost:4317"
	defaultExportInterval = 30 * time.Second
	exporterTimeout       = 10 * time.Second
)

// Config describes the engine instance reported to the collector
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool

	// ThemeSource and DefaultTheme are attached to every span and metric
	ThemeSource  string
	DefaultTheme string

	// SampleRatio is the share of root traces kept; parents decide for children
	SampleRatio    float64
	ExportInterval time.Duration

	// SpanExporter replaces the OTLP trace exporter when set
	SpanExporter sdktrace.SpanExporter
	// MetricReader replaces the periodic OTLP metric reader when set
	MetricReader sdkmetric.Reader
}

func (c Config) withDefaults() Config {
	if c.OTLPEndpoint == "" {
		c.OTLPEndpoint = defaultOTLPEndpoint
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.ExportInterval <= 0 {
		c.ExportInterval = defaultExportInterval
	}
	return c
}

// Resource returns the attributes identifying this engine instance
func (c Config) Resource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(c.ServiceName),
		semconv.ServiceVersion(c.ServiceVersion),
		semconv.DeploymentEnvironment(c.Environment),
	}
	if c.ThemeSource != "" {
		attrs = append(attrs, attribute.String("themeflow.theme_source", c.ThemeSource))
	}
	if c.DefaultTheme != "" {
		attrs = append(attrs, attribute.String("themeflow.default_theme", c.DefaultTheme))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...), resource.WithHost())
}

// Telemetry owns the installed providers until Shutdown
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider

	shutdowns []func(context.Context) error
}

// Initialize installs the global tracer and meter providers. With telemetry
// disabled it returns an empty Telemetry and leaves the no-op globals in place.
// An exporter that cannot be created only disables its own signal.
func Initialize(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		Info("Telemetry disabled")
		return &Telemetry{}, nil
	}
	cfg = cfg.withDefaults()

	res, err := cfg.Resource(ctx)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{}
	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		Warnf("Tracing disabled: %v", err)
	} else {
		otel.SetTracerProvider(tp)
		t.TracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		Warnf("Metrics export disabled: %v", err)
	} else {
		otel.SetMeterProvider(mp)
		t.MeterProvider = mp
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	GetLogger().WithFields(map[string]interface{}{
		"endpoint":     cfg.OTLPEndpoint,
		"theme_source": cfg.ThemeSource,
		"sample_ratio": cfg.SampleRatio,
	}).Info("Telemetry initialized")
	return t, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter := cfg.SpanExporter
	if exporter == nil {
		var err error
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithTimeout(exporterTimeout),
		)
		if err != nil {
			return nil, err
		}
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader := cfg.MetricReader
	if reader == nil {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithTimeout(exporterTimeout),
		)
		if err != nil {
			return nil, err
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval))
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	), nil
}

// Shutdown flushes and stops the providers installed by Initialize
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if len(t.shutdowns) == 0 {
		return nil
	}
	Info("Shutting down telemetry")

	var errs []error
	for _, shutdown := range t.shutdowns {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
