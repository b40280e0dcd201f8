package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/irfndi/mmm-collinearity/internal/models"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Generation  GenerationConfig `mapstructure:"generation"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// APIKey enables key checks on /api/v1 when set.
	APIKey string `mapstructure:"api_key" json:"-" yaml:"-"`
	// ShutdownTimeout is a duration string such as "10s".
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GenerationConfig holds the defaults used when a request omits a parameter.
type GenerationConfig struct {
	Scenario  string  `mapstructure:"scenario"`
	Periods   int     `mapstructure:"periods"`
	BaseSales float64 `mapstructure:"base_sales"`
	NoisePct  float64 `mapstructure:"noise_pct"`
	Seed      int64   `mapstructure:"seed"`

	Seasonality bool `mapstructure:"seasonality"`
	Trend       bool `mapstructure:"trend"`
	Outliers    bool `mapstructure:"outliers"`
}

type AnalysisConfig struct {
	CorrelationThreshold float64             `mapstructure:"correlation_threshold"`
	BootstrapIterations  int                 `mapstructure:"bootstrap_iterations"`
	TrainFraction        float64             `mapstructure:"train_fraction"`
	MovingAverageWindow  int                 `mapstructure:"moving_average_window"`
	Methods              models.MethodParams `mapstructure:"methods"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig controls the cache of generated datasets.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	// RedisURL is used by the redis backend, e.g. redis://localhost:6379/0.
	RedisURL   string `mapstructure:"redis_url" json:"-"`
	TTL        string `mapstructure:"ttl"`
	MaxEntries int    `mapstructure:"max_entries"`
	// Warm pre-generates the default parameters for every scenario at startup.
	Warm bool `mapstructure:"warm"`
}

// TelemetryConfig controls OpenTelemetry tracing and OTLP log export.
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ExportLogs   bool    `mapstructure:"export_logs"`
}

var validExporters = map[string]bool{"stdout": true, "otlp": true}

var validFormats = map[string]bool{"json": true, "text": true}

var validModes = map[string]bool{"debug": true, "release": true, "test": true}

// Load reads config.yaml from ./configs or the working directory, applies
// environment overrides (SERVER_PORT, ANALYSIS_TRAIN_FRACTION, ...) and
// validates the result. A .env file is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.Environment = strings.ToLower(config.Environment)
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)
	config.Cache.Backend = strings.ToLower(config.Cache.Backend)
	config.Telemetry.Exporter = strings.ToLower(config.Telemetry.Exporter)
	config.Telemetry.OTLPEndpoint = strings.TrimSuffix(strings.TrimSpace(config.Telemetry.OTLPEndpoint), "/")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks ranges that would otherwise only fail deep inside a request.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	if !validModes[c.Server.Mode] {
		return fmt.Errorf("server mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("log format must be json or text, got %q", c.Logging.Format)
	}

	if _, err := models.ParseScenario(c.Generation.Scenario); err != nil {
		return fmt.Errorf("invalid generation scenario: %w", err)
	}
	if c.Generation.Periods < 1 {
		return fmt.Errorf("generation periods must be positive, got %d", c.Generation.Periods)
	}
	if c.Generation.NoisePct < 0 || c.Generation.BaseSales < 0 {
		return errors.New("generation noise_pct and base_sales must be non-negative")
	}

	a := c.Analysis
	if a.CorrelationThreshold <= 0 || a.CorrelationThreshold > 1 {
		return fmt.Errorf("correlation threshold must be in (0, 1], got %g", a.CorrelationThreshold)
	}
	if a.BootstrapIterations < 1 {
		return fmt.Errorf("bootstrap iterations must be positive, got %d", a.BootstrapIterations)
	}
	if a.TrainFraction <= 0 || a.TrainFraction >= 1 {
		return fmt.Errorf("train fraction must be in (0, 1), got %g", a.TrainFraction)
	}
	if a.MovingAverageWindow < 1 {
		return fmt.Errorf("moving average window must be positive, got %d", a.MovingAverageWindow)
	}
	if a.Methods.RidgeAlpha < 0 || a.Methods.LassoAlpha < 0 {
		return errors.New("regularization alphas must be non-negative")
	}
	if a.Methods.ElasticNetRatio < 0 || a.Methods.ElasticNetRatio > 1 {
		return fmt.Errorf("elastic net ratio must be in [0, 1], got %g", a.Methods.ElasticNetRatio)
	}
	if a.Methods.PCAComponents < 1 {
		return fmt.Errorf("pca components must be positive, got %d", a.Methods.PCAComponents)
	}

	if c.Cache.Enabled {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache ttl: %w", err)
		}
		switch c.Cache.Backend {
		case CacheBackendMemory:
			if c.Cache.MaxEntries < 1 {
				return fmt.Errorf("cache max_entries must be positive, got %d", c.Cache.MaxEntries)
			}
		case CacheBackendRedis:
			if c.Cache.RedisURL == "" {
				return errors.New("cache redis_url is required for the redis backend")
			}
		default:
			return fmt.Errorf("cache backend must be memory or redis, got %q", c.Cache.Backend)
		}
	}

	t := c.Telemetry
	if t.Enabled && !validExporters[t.Exporter] {
		return fmt.Errorf("telemetry exporter must be stdout or otlp, got %q", t.Exporter)
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate must be in [0, 1], got %g", t.SampleRate)
	}
	if (t.ExportLogs || (t.Enabled && t.Exporter == "otlp")) && t.OTLPEndpoint == "" {
		return errors.New("telemetry otlp_endpoint is required for OTLP export")
	}
	return nil
}

// TTLDuration returns the parsed cache TTL.
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// ShutdownDuration returns the parsed shutdown timeout.
func (s ServerConfig) ShutdownDuration() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// ScenarioValue returns the parsed default scenario.
func (g GenerationConfig) ScenarioValue() models.Scenario {
	s, err := models.ParseScenario(g.Scenario)
	if err != nil {
		return models.ScenarioHigh
	}
	return s
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Generation
	v.SetDefault("generation.scenario", "high")
	v.SetDefault("generation.periods", 104)
	v.SetDefault("generation.base_sales", 500.0)
	v.SetDefault("generation.noise_pct", 15.0)
	v.SetDefault("generation.seed", 42)
	v.SetDefault("generation.seasonality", true)
	v.SetDefault("generation.trend", true)
	v.SetDefault("generation.outliers", true)

	// Analysis
	methods := models.DefaultMethodParams()
	v.SetDefault("analysis.correlation_threshold", 0.8)
	v.SetDefault("analysis.bootstrap_iterations", 50)
	v.SetDefault("analysis.train_fraction", 0.8)
	v.SetDefault("analysis.moving_average_window", 13)
	v.SetDefault("analysis.methods.ridge_alpha", methods.RidgeAlpha)
	v.SetDefault("analysis.methods.lasso_alpha", methods.LassoAlpha)
	v.SetDefault("analysis.methods.elastic_net_ratio", methods.ElasticNetRatio)
	v.SetDefault("analysis.methods.pca_components", methods.PCAComponents)
	v.SetDefault("analysis.methods.residualization_base_channel", methods.ResidualizationBaseChannel)

	// Cache
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("cache.warm", false)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.export_logs", false)
}
