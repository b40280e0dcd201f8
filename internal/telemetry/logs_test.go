package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type exportedRecord struct {
	body     string
	severity otellog.Severity
	attrs    map[string]otellog.Value
}

type memoryExporter struct {
	mu      sync.Mutex
	records []exportedRecord
}

func (m *memoryExporter) Export(ctx context.Context, records []sdklog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		rec := exportedRecord{
			body:     r.Body().AsString(),
			severity: r.Severity(),
			attrs:    make(map[string]otellog.Value),
		}
		r.WalkAttributes(func(kv otellog.KeyValue) bool {
			rec.attrs[kv.Key] = kv.Value
			return true
		})
		m.records = append(m.records, rec)
	}
	return nil
}

func (m *memoryExporter) Shutdown(context.Context) error   { return nil }
func (m *memoryExporter) ForceFlush(context.Context) error { return nil }

func (m *memoryExporter) all() []exportedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]exportedRecord(nil), m.records...)
}

func newTestLogExporter(t *testing.T) (*LogExporter, *memoryExporter) {
	t.Helper()
	mem := &memoryExporter{}
	exp := NewLogExporterWithProcessor(sdklog.NewSimpleProcessor(mem))
	t.Cleanup(func() { _ = exp.Shutdown(context.Background()) })
	return exp, mem
}

func TestLogExporter_TeesRecords(t *testing.T) {
	exp, mem := newTestLogExporter(t)

	var buf bytes.Buffer
	logger := slog.New(exp.Handler(slog.NewJSONHandler(&buf, nil)))
	logger.With("service", "api").WithGroup("analysis").Warn("bootstrap finished", "iterations", 50, "max_cv", 12.5, "stable", true)

	assert.Contains(t, buf.String(), `"msg":"bootstrap finished"`)
	assert.Contains(t, buf.String(), `"analysis":{"iterations":50`)

	records := mem.all()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "bootstrap finished", r.body)
	assert.Equal(t, otellog.SeverityWarn, r.severity)
	assert.Equal(t, "api", r.attrs["service"].AsString())
	assert.Equal(t, int64(50), r.attrs["analysis.iterations"].AsInt64())
	assert.Equal(t, 12.5, r.attrs["analysis.max_cv"].AsFloat64())
	assert.True(t, r.attrs["analysis.stable"].AsBool())
}

func TestLogExporter_RespectsLevel(t *testing.T) {
	exp, mem := newTestLogExporter(t)

	var buf bytes.Buffer
	next := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(exp.Handler(next))
	logger.Info("dropped")
	logger.Error("kept")

	records := mem.all()
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].body)
	assert.Equal(t, otellog.SeverityError, records[0].severity)
	assert.NotContains(t, buf.String(), "dropped")
}

func TestConvertSlogLevelToSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  otellog.Severity
	}{
		{slog.LevelDebug, otellog.SeverityDebug},
		{slog.LevelInfo, otellog.SeverityInfo},
		{slog.LevelWarn, otellog.SeverityWarn},
		{slog.LevelError, otellog.SeverityError},
		{slog.LevelError + 4, otellog.SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, convertSlogLevelToSeverity(tt.level))
		})
	}
}
