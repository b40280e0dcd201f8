package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// StandardLogger writes structured events through log/slog. The With
// helpers return a child logger carrying one extra attribute.
type StandardLogger struct {
	logger *slog.Logger
}

// NewStandardLogger creates a slog-backed logger writing to stdout.
func NewStandardLogger(logLevel string, format string) *StandardLogger {
	return NewStandardLoggerTo(os.Stdout, logLevel, format)
}

// NewStandardLoggerTo is NewStandardLogger with an explicit destination.
func NewStandardLoggerTo(w io.Writer, logLevel string, format string) *StandardLogger {
	return NewStandardLoggerWithHandler(NewHandler(w, logLevel, format))
}

// NewStandardLoggerWithHandler wraps an existing slog handler, e.g. one that
// also exports records over OTLP.
func NewStandardLoggerWithHandler(handler slog.Handler) *StandardLogger {
	return &StandardLogger{logger: slog.New(handler)}
}

// NewHandler builds a text or JSON slog handler filtered at logLevel.
func NewHandler(w io.Writer, logLevel string, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: getSlogLevel(logLevel)}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func (l *StandardLogger) with(key string, value any) *StandardLogger {
	return &StandardLogger{logger: l.logger.With(key, value)}
}

// WithService creates a logger with service context
func (l *StandardLogger) WithService(serviceName string) *StandardLogger {
	return l.with("service", serviceName)
}

// WithComponent creates a logger with component context
func (l *StandardLogger) WithComponent(componentName string) *StandardLogger {
	return l.with("component", componentName)
}

// WithRequestID creates a logger with request ID context
func (l *StandardLogger) WithRequestID(requestID string) *StandardLogger {
	return l.with("request_id", requestID)
}

// WithScenario creates a logger tagged with a covariance scenario
func (l *StandardLogger) WithScenario(scenario string) *StandardLogger {
	return l.with("scenario", scenario)
}

// WithDataset creates a logger tagged with a dataset fingerprint
func (l *StandardLogger) WithDataset(fingerprint string) *StandardLogger {
	return l.with("dataset", fingerprint)
}

// WithError creates a logger with error context
func (l *StandardLogger) WithError(err error) *StandardLogger {
	return l.with("error", err.Error())
}

// LogStartup logs application startup information
func (l *StandardLogger) LogStartup(version string, port int) {
	l.logger.Info("Application startup",
		"version", version,
		"port", port,
		"event", "startup",
	)
}

// LogShutdown logs application shutdown information
func (l *StandardLogger) LogShutdown(reason string) {
	l.logger.Info("Application shutdown",
		"reason", reason,
		"event", "shutdown",
	)
}

// LogAPIRequest logs a served HTTP request
func (l *StandardLogger) LogAPIRequest(method string, path string, statusCode int, duration int64, requestID string) {
	l.logger.Info("API request",
		"method", method,
		"path", path,
		"status", statusCode,
		"duration_ms", duration,
		"request_id", requestID,
		"event", "api",
	)
}

// LogAnalysis logs the outcome of a diagnostic, bootstrap or comparison run
func (l *StandardLogger) LogAnalysis(kind string, details map[string]interface{}) {
	l.logger.Info("Analysis completed",
		"analysis", kind,
		"details", details,
		"event", "analysis",
	)
}

// Logger returns the underlying slog logger
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogrusLogger builds the logger injected into the analysis services.
// Format "text" selects logrus' text formatter; anything else is JSON.
func NewLogrusLogger(level string, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if out != nil {
		logger.SetOutput(out)
	}
	logger.SetLevel(ParseLogrusLevel(level))
	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
