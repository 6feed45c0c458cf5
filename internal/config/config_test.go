package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Environment: "test",
		LogLevel:    "debug",
		Server: ServerConfig{
			Port:           8080,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			MaxUploadMB:    5,
		},
		Telemetry: TelemetryConfig{SampleRate: 1},
		Engine: EngineConfig{
			FuzzyThreshold:       0.75,
			VolatilityThreshold:  0.01,
			SeasonalityThreshold: 0.1,
			SeasonalPeriod:       12,
			ForecastHorizon:      6,
			MovingAverageWindow:  3,
			IRRTolerance:         1e-6,
			IRRMaxIterations:     1000,
		},
		Assumptions: AssumptionsConfig{
			DiscountRate: 0.10,
			CostOfEquity: 0.12,
			CostOfDebt:   0.06,
			TaxRate:      0.30,
		},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 15*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, int64(10), config.Server.MaxUploadMB)
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, "localhost", config.Redis.Host)
	assert.Equal(t, 24*time.Hour, config.Redis.MappingTTL)

	assert.Equal(t, 0.75, config.Engine.FuzzyThreshold)
	assert.Equal(t, 12, config.Engine.SeasonalPeriod)
	assert.Equal(t, 1000, config.Engine.IRRMaxIterations)
	assert.Equal(t, 1e-6, config.Engine.IRRTolerance)
	assert.True(t, config.Engine.Parallel)

	assert.Equal(t, 0.10, config.Assumptions.DiscountRate)
	assert.Equal(t, 0.12, config.Assumptions.CostOfEquity)
	assert.Equal(t, 0.06, config.Assumptions.CostOfDebt)
	assert.Equal(t, 0.30, config.Assumptions.TaxRate)
	assert.Equal(t, 0.05, config.Assumptions.RiskFreeRate)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("ENGINE_FUZZY_THRESHOLD", "0.8")
	t.Setenv("ASSUMPTIONS_DISCOUNT_RATE", "0.08")

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "production", config.Environment)
	assert.True(t, config.IsProduction())
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, 6380, config.Redis.Port)
	assert.Equal(t, 0.8, config.Engine.FuzzyThreshold)
	assert.Equal(t, 0.08, config.Assumptions.DiscountRate)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("ENGINE_IRR_MAX_ITERATIONS", "5000")

	config, err := Load()
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "IRRMaxIterations")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "LogLevel"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "Port"},
		{"tax rate above one", func(c *Config) { c.Assumptions.TaxRate = 1.5 }, "TaxRate"},
		{"discount rate at minus one", func(c *Config) { c.Assumptions.DiscountRate = -1 }, "DiscountRate"},
		{"fuzzy threshold zero", func(c *Config) { c.Engine.FuzzyThreshold = 0 }, "FuzzyThreshold"},
		{"redis enabled without host", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Host = ""
		}, "redis.host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
