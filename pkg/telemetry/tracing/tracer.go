package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"
)

// Config contains configuration for distributed tracing.
type Config struct {
	// Enabled installs the SDK tracer provider. When false, spans are no-ops.
	Enabled bool

	// ServiceName is reported as the service.name resource attribute.
	// Default: "rulekit"
	ServiceName string

	// ServiceVersion is reported as the service.version resource attribute.
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint string

	// Insecure disables TLS to the collector.
	Insecure bool

	// Timeout bounds each export.
	// Default: 10 seconds
	Timeout time.Duration

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string

	// SampleRatio is used with the "ratio" sampler (0.0 to 1.0).
	SampleRatio float64
}

// DefaultConfig returns a disabled tracing configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "rulekit",
		Endpoint:    "localhost:4317",
		Insecure:    true,
		Timeout:     10 * time.Second,
		Sampler:     SamplerAlways,
		SampleRatio: 1.0,
	}
}

// Validate checks the tracing configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("tracing endpoint cannot be empty")
	}
	return ValidateSampler(c.Sampler, c.SampleRatio)
}

// Provider owns the tracer provider installed for the process.
type Provider struct {
	config   *Config
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// Setup installs a global tracer provider and W3C propagators according to
// cfg. With tracing disabled a no-op provider is used and nothing is
// exported. The exporter connects lazily, so Setup does not block on the
// collector.
func Setup(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rulekit"
	}

	p := &Provider{config: cfg}

	if !cfg.Enabled {
		p.tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
		return p, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sampler, err := createSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	exporter, err := createOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return setupWithExporter(ctx, cfg, exporter, sampler)
}

// setupWithExporter installs a provider batching spans to exporter.
func setupWithExporter(ctx context.Context, cfg *Config, exporter sdktrace.SpanExporter, sampler sdktrace.Sampler) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Provider{
		config:   cfg,
		provider: tp,
		tracer:   tp.Tracer(cfg.ServiceName),
	}, nil
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.provider != nil
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

func createOTLPExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// TraceID returns the trace ID from the context, or "" without a valid span.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
