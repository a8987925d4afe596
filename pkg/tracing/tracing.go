// Package tracing configures OpenTelemetry for a vulntracker run. With no
// collector endpoint every span goes to a no-op tracer.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/duration"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InstrumentationName names the tracer used by the pipeline.
const InstrumentationName = "github.com/waftester/vulntracker/pkg/pipeline"

// Options configures the OTLP exporter.
type Options struct {
	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// Empty disables export.
	Endpoint string

	// ServiceName is the service name for traces (default: "vulntracker").
	ServiceName string

	// Insecure uses a plaintext connection.
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ConnectionTimeout bounds exporter creation (default: 10s).
	ConnectionTimeout time.Duration

	// ShutdownTimeout bounds the final flush (default: 5s).
	ShutdownTimeout time.Duration
}

// Provider owns the tracer provider for one run.
type Provider struct {
	tp              *sdktrace.TracerProvider
	tracer          trace.Tracer
	shutdownTimeout time.Duration
}

// Setup builds a Provider. An empty endpoint yields a no-op provider.
func Setup(opts Options) (*Provider, error) {
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.ShutdownGrace
	}
	if opts.Endpoint == "" {
		return &Provider{
			tracer:          noop.NewTracerProvider().Tracer(InstrumentationName),
			shutdownTimeout: opts.ShutdownTimeout,
		}, nil
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.ExporterConnect
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", opts.Endpoint, err)
	}
	return NewWithExporter(exporter, opts), nil
}

// NewWithExporter builds a Provider around an existing exporter, spans
// exported in batches. It also installs the provider globally.
func NewWithExporter(exporter sdktrace.SpanExporter, opts Options) *Provider {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.ShutdownGrace
	}

	// avoid merging with resource.Default to prevent schema conflicts
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "pipeline"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tp:              tp,
		tracer:          tp.Tracer(InstrumentationName),
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// Tracer returns the run tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p.tp != nil }

// Flush exports every span ended so far.
func (p *Provider) Flush(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the exporter. It is a no-op for the no-op provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer shutdown: %w", err)
	}
	return nil
}
