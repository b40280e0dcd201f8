package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogExporter ships slog records to an OTLP collector
type LogExporter struct {
	provider *sdklog.LoggerProvider
}

// NewLogExporter creates an OTLP/HTTP log pipeline for config.OTLPEndpoint.
func NewLogExporter(ctx context.Context, config TelemetryConfig) (*LogExporter, error) {
	exporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(config.OTLPEndpoint+"/v1/logs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	res, err := newResource(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewLogExporterWithProcessor(sdklog.NewBatchProcessor(exporter), sdklog.WithResource(res)), nil
}

// NewLogExporterWithProcessor builds the pipeline around an existing processor.
func NewLogExporterWithProcessor(processor sdklog.Processor, opts ...sdklog.LoggerProviderOption) *LogExporter {
	opts = append(opts, sdklog.WithProcessor(processor))
	return &LogExporter{provider: sdklog.NewLoggerProvider(opts...)}
}

// Handler returns a slog handler that emits every record over OTLP and then
// passes it to next.
func (e *LogExporter) Handler(next slog.Handler) slog.Handler {
	return &otlpHandler{logger: e.provider.Logger(ServiceName), next: next}
}

// Shutdown flushes buffered records
func (e *LogExporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

type otlpHandler struct {
	logger otellog.Logger
	next   slog.Handler
	attrs  []otellog.KeyValue
	group  string
}

func (h *otlpHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *otlpHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make([]otellog.KeyValue, 0, len(h.attrs)+record.NumAttrs())
	attrs = append(attrs, h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.convertAttr(a))
		return true
	})

	var r otellog.Record
	r.SetTimestamp(record.Time)
	r.SetObservedTimestamp(time.Now())
	r.SetSeverity(convertSlogLevelToSeverity(record.Level))
	r.SetSeverityText(record.Level.String())
	r.SetBody(otellog.StringValue(record.Message))
	r.AddAttributes(attrs...)
	h.logger.Emit(ctx, r)

	return h.next.Handle(ctx, record)
}

func (h *otlpHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]otellog.KeyValue(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.convertAttr(a))
	}
	clone.next = h.next.WithAttrs(attrs)
	return &clone
}

func (h *otlpHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = name
	if h.group != "" {
		clone.group = h.group + "." + name
	}
	clone.next = h.next.WithGroup(name)
	return &clone
}

func (h *otlpHandler) convertAttr(a slog.Attr) otellog.KeyValue {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return otellog.Bool(key, v.Bool())
	case slog.KindInt64:
		return otellog.Int64(key, v.Int64())
	case slog.KindFloat64:
		return otellog.Float64(key, v.Float64())
	default:
		return otellog.String(key, v.String())
	}
}

// convertSlogLevelToSeverity converts slog.Level to otellog.Severity
func convertSlogLevelToSeverity(level slog.Level) otellog.Severity {
	switch {
	case level >= slog.LevelError:
		return otellog.SeverityError
	case level >= slog.LevelWarn:
		return otellog.SeverityWarn
	case level >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}
