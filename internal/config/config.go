package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config represents the complete application configuration.
// Layer 1: embedded defaults (defaults.yaml)
// Layer 2: user config file (~/.config/insightdeck/config.yaml or --config)
// Layer 3: .env file, environment variables and runtime overrides
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	PlayStore PlayStoreConfig `mapstructure:"playstore"`
	Market    MarketConfig    `mapstructure:"market"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects where admission windows are kept.
//
// Driver is one of memory, libsql or redis. Path/URL/AuthToken apply to libsql
// (local file or Turso), Redis to the redis driver.
type StoreConfig struct {
	Driver    string      `mapstructure:"driver"`
	Path      string      `mapstructure:"path"`
	URL       string      `mapstructure:"url"`
	AuthToken string      `mapstructure:"auth_token"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// YouTubeConfig configures the comment threads API.
type YouTubeConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Host       string        `mapstructure:"host"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
}

// PlayStoreConfig configures the app search API.
type PlayStoreConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Host     string        `mapstructure:"host"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Language string        `mapstructure:"language"`
	Country  string        `mapstructure:"country"`
}

// MarketConfig configures the OpenAI-compatible chat API used for market analysis.
type MarketConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig is the outbound admission quota.
type RateLimitConfig struct {
	Key               string        `mapstructure:"key"`
	Requests          int           `mapstructure:"requests"`
	Window            time.Duration `mapstructure:"window"`
	Safeguard         bool          `mapstructure:"safeguard"`
	SafeguardInterval time.Duration `mapstructure:"safeguard_interval"`
}

// RetryConfig is the linear backoff policy.
type RetryConfig struct {
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects SIMPLE (CLI) or STRUCTURED (server) output
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	var problems []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}

	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "memory", "libsql", "redis":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be memory, libsql or redis, got %q", c.Store.Driver))
	}
	if strings.EqualFold(c.Store.Driver, "redis") && strings.TrimSpace(c.Store.Redis.Addr) == "" {
		problems = append(problems, "store.redis.addr is required for the redis driver")
	}

	if c.RateLimit.Requests <= 0 {
		problems = append(problems, "rate_limit.requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		problems = append(problems, "rate_limit.window must be positive")
	}
	if c.Retry.BaseDelay <= 0 {
		problems = append(problems, "retry.base_delay must be positive")
	}
	if c.Retry.MaxAttempts < 0 {
		problems = append(problems, "retry.max_attempts must not be negative")
	}
	if c.Market.Temperature < 0 || c.Market.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("market.temperature must be between 0 and 2, got %g", c.Market.Temperature))
	}
	if c.YouTube.MaxResults < 0 {
		problems = append(problems, "youtube.max_results must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
