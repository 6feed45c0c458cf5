package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment" validate:"required"`
	LogLevel    string            `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Assumptions AssumptionsConfig `mapstructure:"assumptions"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	MaxUploadMB    int64         `mapstructure:"max_upload_mb" validate:"min=1"`
}

type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	MappingTTL time.Duration `mapstructure:"mapping_ttl"`
}

type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	LogLevel       string  `mapstructure:"log_level"`
	SampleRate     float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// EngineConfig tunes the numeric heuristics of the metrics engine.
type EngineConfig struct {
	FuzzyThreshold       float64 `mapstructure:"fuzzy_threshold" validate:"gt=0,lte=1"`
	VolatilityThreshold  float64 `mapstructure:"volatility_threshold" validate:"gt=0"`
	SeasonalityThreshold float64 `mapstructure:"seasonality_threshold" validate:"gt=0"`
	SeasonalPeriod       int     `mapstructure:"seasonal_period" validate:"min=2"`
	ForecastHorizon      int     `mapstructure:"forecast_horizon" validate:"min=1,max=120"`
	MovingAverageWindow  int     `mapstructure:"moving_average_window" validate:"min=2"`
	IRRTolerance         float64 `mapstructure:"irr_tolerance" validate:"gt=0"`
	IRRMaxIterations     int     `mapstructure:"irr_max_iterations" validate:"min=1,max=1000"`
	Parallel             bool    `mapstructure:"parallel"`
}

// AssumptionsConfig holds the rates used when a dataset does not carry them.
type AssumptionsConfig struct {
	DiscountRate float64 `mapstructure:"discount_rate" validate:"gt=-1"`
	CostOfEquity float64 `mapstructure:"cost_of_equity" validate:"gte=0"`
	CostOfDebt   float64 `mapstructure:"cost_of_debt" validate:"gte=0"`
	TaxRate      float64 `mapstructure:"tax_rate" validate:"gte=0,lte=1"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)
	config.LogLevel = strings.ToLower(config.LogLevel)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the struct constraints of the configuration.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed on %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("invalid configuration: redis.host is required when redis is enabled")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.rate_limit_rps", 20.0)
	viper.SetDefault("server.rate_limit_burst", 40)
	viper.SetDefault("server.max_upload_mb", 10)

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mapping_ttl", "24h")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.service_name", "finmetrics-go")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.log_level", "info")
	viper.SetDefault("telemetry.sample_rate", 1.0)

	// Engine
	viper.SetDefault("engine.fuzzy_threshold", 0.75)
	viper.SetDefault("engine.volatility_threshold", 0.01)
	viper.SetDefault("engine.seasonality_threshold", 0.1)
	viper.SetDefault("engine.seasonal_period", 12)
	viper.SetDefault("engine.forecast_horizon", 6)
	viper.SetDefault("engine.moving_average_window", 3)
	viper.SetDefault("engine.irr_tolerance", 1e-6)
	viper.SetDefault("engine.irr_max_iterations", 1000)
	viper.SetDefault("engine.parallel", true)

	// Assumptions
	viper.SetDefault("assumptions.discount_rate", 0.10)
	viper.SetDefault("assumptions.cost_of_equity", 0.12)
	viper.SetDefault("assumptions.cost_of_debt", 0.06)
	viper.SetDefault("assumptions.tax_rate", 0.30)
	viper.SetDefault("assumptions.risk_free_rate", 0.05)
}
