package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestLogger creates a logger for testing
func setupTestLogger(level, format string) (*StandardLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewStandardLoggerTo(&buf, level, format), &buf
}

func decodeLastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestNewStandardLogger_Basic(t *testing.T) {
	logger := NewStandardLogger("info", "json")

	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger())
}

func TestGetSlogLevel(t *testing.T) {
	tests := []struct {
		levelStr string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			assert.Equal(t, tt.expected, getSlogLevel(tt.levelStr))
		})
	}
}

func TestParseLogrusLevel(t *testing.T) {
	tests := []struct {
		levelStr string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"Info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogrusLevel(tt.levelStr))
		})
	}
}

func TestStandardLogger_TextFormat(t *testing.T) {
	logger, buf := setupTestLogger("info", "text")

	logger.WithService("collinearity").Logger().Info("test message")

	out := buf.String()
	assert.Contains(t, out, "service=collinearity")
	assert.Contains(t, out, "test message")
}

func TestStandardLogger_ContextFields(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *StandardLogger) *StandardLogger
		key   string
		value string
	}{
		{"service", func(l *StandardLogger) *StandardLogger { return l.WithService("mmm-collinearity") }, "service", "mmm-collinearity"},
		{"component", func(l *StandardLogger) *StandardLogger { return l.WithComponent("http") }, "component", "http"},
		{"request id", func(l *StandardLogger) *StandardLogger { return l.WithRequestID("req-1") }, "request_id", "req-1"},
		{"scenario", func(l *StandardLogger) *StandardLogger { return l.WithScenario("extreme") }, "scenario", "extreme"},
		{"dataset", func(l *StandardLogger) *StandardLogger { return l.WithDataset("00ff") }, "dataset", "00ff"},
		{"error", func(l *StandardLogger) *StandardLogger { return l.WithError(errors.New("boom")) }, "error", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := setupTestLogger("info", "json")
			tt.log(logger).LogAnalysis("diagnostics", nil)

			entry := decodeLastLine(t, buf)
			assert.Equal(t, tt.value, entry[tt.key])
			assert.Equal(t, "Analysis completed", entry["msg"])
		})
	}
}

func TestStandardLogger_ChildrenDoNotLeak(t *testing.T) {
	logger, buf := setupTestLogger("info", "json")

	logger.WithRequestID("req-1").WithScenario("high").LogShutdown("signal")
	entry := decodeLastLine(t, buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "high", entry["scenario"])

	logger.LogShutdown("signal")
	entry = decodeLastLine(t, buf)
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "scenario")
}

func TestStandardLogger_LevelFiltering(t *testing.T) {
	logger, buf := setupTestLogger("warn", "json")

	logger.Logger().Info("hidden")
	assert.Empty(t, buf.String())

	logger.Logger().Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestStandardLogger_Events(t *testing.T) {
	logger, buf := setupTestLogger("info", "json")

	logger.LogStartup("1.0.0", 8080)
	entry := decodeLastLine(t, buf)
	assert.Equal(t, "startup", entry["event"])
	assert.Equal(t, float64(8080), entry["port"])

	logger.LogShutdown("signal")
	entry = decodeLastLine(t, buf)
	assert.Equal(t, "shutdown", entry["event"])
	assert.Equal(t, "signal", entry["reason"])

	logger.LogAPIRequest("POST", "/api/v1/diagnostics", 200, 12, "req-9")
	entry = decodeLastLine(t, buf)
	assert.Equal(t, "api", entry["event"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, "req-9", entry["request_id"])

	logger.LogAnalysis("diagnostics", map[string]interface{}{"max_vif": 12.5})
	entry = decodeLastLine(t, buf)
	assert.Equal(t, "analysis", entry["event"])
	assert.Equal(t, "diagnostics", entry["analysis"])
	details, ok := entry["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12.5, details["max_vif"])
}

func TestNewLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLogger("debug", "json", &buf)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.WithField("channels", 6).Debug("Dataset generated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Dataset generated", entry["msg"])
	assert.Equal(t, float64(6), entry["channels"])

	buf.Reset()
	text := NewLogrusLogger("error", "text", &buf)
	text.Info("dropped")
	assert.Empty(t, buf.String())
	text.Error("kept")
	assert.Contains(t, buf.String(), "kept")
	_, isText := text.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
