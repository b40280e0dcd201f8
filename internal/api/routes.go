package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/mmm-collinearity/internal/api/handlers"
	"github.com/irfndi/mmm-collinearity/internal/cache"
	"github.com/irfndi/mmm-collinearity/internal/config"
	"github.com/irfndi/mmm-collinearity/internal/logging"
	"github.com/irfndi/mmm-collinearity/internal/middleware"
	"github.com/irfndi/mmm-collinearity/internal/services"
	"github.com/irfndi/mmm-collinearity/internal/telemetry"
)

// Version is reported by /health.
const Version = "1.0.0"

// Dependencies groups what the router needs from main.
type Dependencies struct {
	Logger   *logrus.Logger
	Events   *logging.StandardLogger
	Settings handlers.Settings
	APIKey   string
	// Memory overrides host memory lookup in /health. Nil uses gopsutil.
	Memory handlers.MemoryReader
	// Cache serves repeated generation requests. Nil disables caching.
	Cache cache.Store
	// TracerProvider enables request tracing when set.
	TracerProvider trace.TracerProvider
}

// NewRouter builds a gin engine with recovery, request IDs, optional tracing
// and request logging installed, then registers all routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID())
	if deps.TracerProvider != nil {
		router.Use(otelgin.Middleware(telemetry.ServiceName,
			otelgin.WithTracerProvider(deps.TracerProvider),
			otelgin.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
		))
	}
	if deps.Events != nil {
		router.Use(middleware.RequestLogger(deps.Events))
	}
	SetupRoutes(router, deps)
	return router
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(Version, deps.Memory)
	analysisHandler := handlers.NewAnalysisHandler(deps.Logger, deps.Events, deps.Settings)
	if deps.Cache != nil {
		healthHandler.WithDatasetCache(deps.Cache)
		analysisHandler.WithDatasetCache(deps.Cache)
	}
	apiKey := middleware.NewAPIKeyMiddleware(deps.APIKey)

	// Health check endpoint
	router.GET("/health", healthHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(apiKey.RequireAPIKey())
	{
		v1.GET("/scenarios", analysisHandler.Scenarios)

		// Dataset routes
		datasets := v1.Group("/datasets")
		{
			datasets.POST("", analysisHandler.GenerateDataset)
			datasets.POST("/export", analysisHandler.ExportDataset)
		}

		// Analysis routes
		v1.POST("/diagnostics", analysisHandler.Diagnostics)
		v1.POST("/bootstrap", analysisHandler.Bootstrap)
		v1.POST("/compare", analysisHandler.Compare)
		v1.POST("/simulate", analysisHandler.Simulate)
		v1.POST("/summary", analysisHandler.Summary)
	}
}

// SettingsFromConfig converts loaded configuration into request defaults.
func SettingsFromConfig(cfg *config.Config) handlers.Settings {
	gen := services.DefaultGenerateParams()
	gen.Scenario = cfg.Generation.ScenarioValue()
	gen.Periods = cfg.Generation.Periods
	gen.BaseSales = cfg.Generation.BaseSales
	gen.NoisePct = cfg.Generation.NoisePct
	gen.Seed = cfg.Generation.Seed
	gen.Options = services.GenerateOptions{
		Seasonality: cfg.Generation.Seasonality,
		Trend:       cfg.Generation.Trend,
		Outliers:    cfg.Generation.Outliers,
	}

	return handlers.Settings{
		Generation:           gen,
		CorrelationThreshold: cfg.Analysis.CorrelationThreshold,
		BootstrapIterations:  cfg.Analysis.BootstrapIterations,
		TrainFraction:        cfg.Analysis.TrainFraction,
		Methods:              cfg.Analysis.Methods,
		MovingAverageWindow:  cfg.Analysis.MovingAverageWindow,
	}
}

// DatasetCacheFromConfig builds the configured dataset cache, or returns nil
// when caching is disabled.
func DatasetCacheFromConfig(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if cfg.Cache.Backend == config.CacheBackendRedis {
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisDatasetCache(client, cfg.Cache.TTLDuration(), logger), nil
	}
	return cache.NewDatasetCache(cfg.Cache.TTLDuration(), cfg.Cache.MaxEntries, logger), nil
}
