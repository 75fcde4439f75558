package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pricing service
type Config struct {
	HTTP          HTTPConfig          `mapstructure:"http"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Pricing       PricingConfig       `mapstructure:"pricing"`
	Refresh       RefreshConfig       `mapstructure:"refresh"`
	Warmup        WarmupConfig        `mapstructure:"warmup"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig holds Postgres connection configuration
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxConns     int32         `mapstructure:"max_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// RedisConfig holds the optional shared L2 cache configuration
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CacheConfig holds the price cache freshness windows and capacity
type CacheConfig struct {
	FreshWindow time.Duration `mapstructure:"fresh_window"`
	StaleWindow time.Duration `mapstructure:"stale_window"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	MaxEntries  int           `mapstructure:"max_entries"`
}

// PricingConfig holds validation and history settings
type PricingConfig struct {
	MaxSwing    float64 `mapstructure:"max_swing"`
	HistoryDays int     `mapstructure:"history_days"`
}

// RefreshConfig holds the background refresh executor settings
type RefreshConfig struct {
	Workers       int     `mapstructure:"workers"`
	QueueSize     int     `mapstructure:"queue_size"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// WarmupConfig holds startup cache warming settings
type WarmupConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ItemLimit int           `mapstructure:"item_limit"`
}

// AWSConfig holds AWS service configuration
type AWSConfig struct {
	Region      string `mapstructure:"region"`
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not fatal if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// HTTP defaults
	v.SetDefault("http.port", 8080)

	// Database defaults
	v.SetDefault("database.url", "postgres://localhost:5432/marketplace")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.query_timeout", "10s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "30m")

	// Cache defaults
	v.SetDefault("cache.fresh_window", "5m")
	v.SetDefault("cache.stale_window", "30m")
	v.SetDefault("cache.max_age", "24h")
	v.SetDefault("cache.max_entries", 5000)

	// Pricing defaults
	v.SetDefault("pricing.max_swing", 0.9)
	v.SetDefault("pricing.history_days", 30)

	// Refresh defaults
	v.SetDefault("refresh.workers", 2)
	v.SetDefault("refresh.queue_size", 64)
	v.SetDefault("refresh.rate_per_second", 10)
	v.SetDefault("refresh.burst", 20)

	// Warmup defaults
	v.SetDefault("warmup.enabled", true)
	v.SetDefault("warmup.timeout", "30s")
	v.SetDefault("warmup.item_limit", 50)

	// AWS defaults
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.sns_topic_arn", "")

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Cache.FreshWindow <= 0 {
		return fmt.Errorf("cache fresh window must be > 0")
	}
	if c.Cache.StaleWindow <= c.Cache.FreshWindow {
		return fmt.Errorf("cache stale window must be greater than the fresh window")
	}
	if c.Cache.MaxAge <= c.Cache.StaleWindow {
		return fmt.Errorf("cache max age must be greater than the stale window")
	}

	if c.Pricing.MaxSwing <= 0 || c.Pricing.MaxSwing >= 10 {
		return fmt.Errorf("invalid max swing: %f", c.Pricing.MaxSwing)
	}

	if c.Refresh.Workers <= 0 {
		return fmt.Errorf("at least one refresh worker is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
