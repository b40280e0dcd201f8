package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/mmm-collinearity/internal/api"
	"github.com/irfndi/mmm-collinearity/internal/config"
	"github.com/irfndi/mmm-collinearity/internal/logging"
	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/services"
	"github.com/irfndi/mmm-collinearity/internal/telemetry"
)

const serviceName = "mmm-collinearity"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	telemetryConfig := telemetryConfigFrom(cfg)
	tracing, err := telemetry.InitTelemetry(context.Background(), telemetryConfig, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownWithTimeout("telemetry", tracing.Shutdown)

	eventHandler := logging.NewHandler(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Telemetry.ExportLogs {
		logExporter, err := telemetry.NewLogExporter(context.Background(), telemetryConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize log export: %w", err)
		}
		defer shutdownWithTimeout("log export", logExporter.Shutdown)
		eventHandler = logExporter.Handler(eventHandler)
	}
	events := logging.NewStandardLoggerWithHandler(eventHandler).WithService(serviceName)
	slog.SetDefault(events.Logger())
	logrusLogger := logging.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	settings := api.SettingsFromConfig(cfg)
	datasets, err := api.DatasetCacheFromConfig(context.Background(), cfg, logrusLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize dataset cache: %w", err)
	}
	if closer, ok := datasets.(io.Closer); ok {
		defer closer.Close()
	}
	if datasets != nil && cfg.Cache.Warm {
		generator := services.NewDataGenerator(logrusLogger)
		datasets.Warm(settings.Generation, models.AllScenarios(), generator.Generate)
	}

	gin.SetMode(cfg.Server.Mode)
	deps := api.Dependencies{
		Logger:   logrusLogger,
		Events:   events,
		Settings: settings,
		APIKey:   cfg.Server.APIKey,
		Cache:    datasets,
	}
	if cfg.Telemetry.Enabled {
		deps.TracerProvider = tracing.TracerProvider()
	}
	srv := newServer(cfg, deps)

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events.LogStartup(api.Version, cfg.Server.Port)
	if err := serve(ctx, srv, listener, cfg.Server.ShutdownDuration()); err != nil {
		events.WithError(err).LogShutdown("server error")
		return err
	}
	if datasets != nil {
		datasets.LogStats()
	}
	events.LogShutdown("signal received")
	return nil
}

func telemetryConfigFrom(cfg *config.Config) telemetry.TelemetryConfig {
	return telemetry.TelemetryConfig{
		Enabled:      cfg.Telemetry.Enabled,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Environment:  cfg.Environment,
		Release:      api.Version,
		SampleRate:   cfg.Telemetry.SampleRate,
		ExportLogs:   cfg.Telemetry.ExportLogs,
	}
}

// shutdownWithTimeout runs a flush-on-exit hook with a bounded deadline.
func shutdownWithTimeout(name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s shutdown failed: %v\n", name, err)
	}
}

// newServer builds the HTTP server with security timeouts.
func newServer(cfg *config.Config, deps api.Dependencies) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(deps),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}
}

// serve runs srv on listener until ctx is cancelled, then gives outstanding
// requests shutdownTimeout to complete.
func serve(ctx context.Context, srv *http.Server, listener net.Listener, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-errCh
}
