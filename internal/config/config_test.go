package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/mmm-collinearity/internal/models"
)

// chdirTemp moves the test into an empty directory so no stray config.yaml
// or .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_WithDefaults(t *testing.T) {
	chdirTemp(t)

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "release", config.Server.Mode)
	assert.Equal(t, 10*time.Second, config.Server.ShutdownDuration())
	assert.Empty(t, config.Server.APIKey)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)

	assert.Equal(t, "high", config.Generation.Scenario)
	assert.Equal(t, models.ScenarioHigh, config.Generation.ScenarioValue())
	assert.Equal(t, 104, config.Generation.Periods)
	assert.Equal(t, 500.0, config.Generation.BaseSales)
	assert.Equal(t, 15.0, config.Generation.NoisePct)
	assert.Equal(t, int64(42), config.Generation.Seed)
	assert.True(t, config.Generation.Seasonality)
	assert.True(t, config.Generation.Trend)
	assert.True(t, config.Generation.Outliers)

	assert.Equal(t, 0.8, config.Analysis.CorrelationThreshold)
	assert.Equal(t, 50, config.Analysis.BootstrapIterations)
	assert.Equal(t, 0.8, config.Analysis.TrainFraction)
	assert.Equal(t, 13, config.Analysis.MovingAverageWindow)
	assert.Equal(t, models.DefaultMethodParams(), config.Analysis.Methods)

	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, CacheBackendMemory, config.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379/0", config.Cache.RedisURL)
	assert.Equal(t, 10*time.Minute, config.Cache.TTLDuration())
	assert.Equal(t, 64, config.Cache.MaxEntries)
	assert.False(t, config.Cache.Warm)

	assert.False(t, config.Telemetry.Enabled)
	assert.Equal(t, "stdout", config.Telemetry.Exporter)
	assert.Equal(t, "http://localhost:4318", config.Telemetry.OTLPEndpoint)
	assert.Equal(t, 1.0, config.Telemetry.SampleRate)
	assert.False(t, config.Telemetry.ExportLogs)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SERVER_API_KEY", "secret")
	t.Setenv("LOGGING_LEVEL", "DEBUG")
	t.Setenv("GENERATION_SCENARIO", "extreme")
	t.Setenv("GENERATION_PERIODS", "156")
	t.Setenv("ANALYSIS_BOOTSTRAP_ITERATIONS", "100")
	t.Setenv("ANALYSIS_TRAIN_FRACTION", "0.7")
	t.Setenv("ANALYSIS_METHODS_RIDGE_ALPHA", "2.5")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "secret", config.Server.APIKey)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, models.ScenarioExtreme, config.Generation.ScenarioValue())
	assert.Equal(t, 156, config.Generation.Periods)
	assert.Equal(t, 100, config.Analysis.BootstrapIterations)
	assert.Equal(t, 0.7, config.Analysis.TrainFraction)
	assert.Equal(t, 2.5, config.Analysis.Methods.RidgeAlpha)
}

func TestLoad_FromFileAndDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "configs"), 0o755))
	yaml := []byte(`
server:
  port: 7070
logging:
  format: text
analysis:
  correlation_threshold: 0.7
  methods:
    pca_components: 2
    residualization_base_channel: Digital
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), yaml, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GENERATION_SEED=7\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("GENERATION_SEED") })

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "text", config.Logging.Format)
	assert.Equal(t, 0.7, config.Analysis.CorrelationThreshold)
	assert.Equal(t, 2, config.Analysis.Methods.PCAComponents)
	assert.Equal(t, "Digital", config.Analysis.Methods.ResidualizationBaseChannel)
	assert.Equal(t, 1.0, config.Analysis.Methods.RidgeAlpha, "unset keys keep defaults")
	assert.Equal(t, int64(7), config.Generation.Seed)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "SERVER_PORT", "70000"},
		{"unknown mode", "SERVER_MODE", "verbose"},
		{"bad shutdown timeout", "SERVER_SHUTDOWN_TIMEOUT", "soon"},
		{"unknown format", "LOGGING_FORMAT", "xml"},
		{"unknown scenario", "GENERATION_SCENARIO", "chaotic"},
		{"zero periods", "GENERATION_PERIODS", "0"},
		{"negative noise", "GENERATION_NOISE_PCT", "-1"},
		{"threshold above one", "ANALYSIS_CORRELATION_THRESHOLD", "1.5"},
		{"zero iterations", "ANALYSIS_BOOTSTRAP_ITERATIONS", "0"},
		{"full train fraction", "ANALYSIS_TRAIN_FRACTION", "1"},
		{"zero window", "ANALYSIS_MOVING_AVERAGE_WINDOW", "0"},
		{"negative alpha", "ANALYSIS_METHODS_LASSO_ALPHA", "-0.1"},
		{"ratio above one", "ANALYSIS_METHODS_ELASTIC_NET_RATIO", "2"},
		{"zero components", "ANALYSIS_METHODS_PCA_COMPONENTS", "0"},
		{"bad cache ttl", "CACHE_TTL", "forever"},
		{"zero cache entries", "CACHE_MAX_ENTRIES", "0"},
		{"unknown cache backend", "CACHE_BACKEND", "memcached"},
		{"sample rate above one", "TELEMETRY_SAMPLE_RATE", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(tt.key, tt.value)

			config, err := Load()
			assert.Error(t, err)
			assert.Nil(t, config)
		})
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestGenerationConfig_ScenarioValueFallback(t *testing.T) {
	assert.Equal(t, models.ScenarioLow, GenerationConfig{Scenario: "Low"}.ScenarioValue())
	assert.Equal(t, models.ScenarioHigh, GenerationConfig{Scenario: "bogus"}.ScenarioValue())
}

func TestLoad_DisabledCacheSkipsValidation(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_TTL", "forever")

	config, err := Load()
	require.NoError(t, err)
	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, config.Cache.TTLDuration())
}

func TestLoad_TelemetryValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"otlp exporter", map[string]string{"TELEMETRY_ENABLED": "true", "TELEMETRY_EXPORTER": "OTLP", "TELEMETRY_OTLP_ENDPOINT": "http://collector:4318/"}, false},
		{"unknown exporter", map[string]string{"TELEMETRY_ENABLED": "true", "TELEMETRY_EXPORTER": "zipkin"}, true},
		{"unknown exporter while disabled", map[string]string{"TELEMETRY_EXPORTER": "zipkin"}, false},
		{"log export without endpoint", map[string]string{"TELEMETRY_EXPORT_LOGS": "true", "TELEMETRY_OTLP_ENDPOINT": " "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotContains(t, config.Telemetry.OTLPEndpoint, "4318/")
		})
	}
}
