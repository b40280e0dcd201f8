package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "mmm-collinearity"
	ServiceVersion = "1.0.0"

	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// TelemetryConfig holds configuration for tracing and log export
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	Environment  string
	Release      string
	SampleRate   float64
	// ExportLogs also ships structured events to OTLPEndpoint.
	ExportLogs bool
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:      false,
		Exporter:     ExporterStdout,
		OTLPEndpoint: "http://localhost:4318",
		Environment:  "development",
		Release:      ServiceVersion,
		SampleRate:   1.0,
	}
}

// Provider owns the tracer provider installed by InitTelemetry
type Provider struct {
	tracerProvider trace.TracerProvider
	shutdown       func(context.Context) error
}

// InitTelemetry installs a global tracer provider and the W3C trace context
// propagator. When tracing is disabled the returned provider is a no-op.
// Stdout spans are written to w, or os.Stdout when w is nil.
func InitTelemetry(ctx context.Context, config TelemetryConfig, w io.Writer) (*Provider, error) {
	if !config.Enabled {
		return &Provider{
			tracerProvider: otel.GetTracerProvider(),
			shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := newSpanExporter(ctx, config, w)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, config)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tracerProvider: tp, shutdown: tp.Shutdown}, nil
}

func newSpanExporter(ctx context.Context, config TelemetryConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case ExporterStdout, "":
		if w == nil {
			w = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		return exporter, nil
	case ExporterOTLP:
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(config.OTLPEndpoint+"/v1/traces"))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", config.Exporter)
	}
}

func newResource(ctx context.Context, config TelemetryConfig) (*resource.Resource, error) {
	release := config.Release
	if release == "" {
		release = ServiceVersion
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(release),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// TracerProvider returns the provider installed by InitTelemetry.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// Shutdown flushes pending spans and stops the exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	if err := p.shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

// Tracer returns the service tracer from the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// StartAnalysisSpan starts a child span named "analysis.<kind>".
func StartAnalysisSpan(ctx context.Context, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "analysis."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks the span in ctx as failed
func RecordError(ctx context.Context, err error, description string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
	}
}
