// Package config loads linkstream settings from defaults, an optional YAML
// file, .env files and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName names the XDG config directory and the default service name.
const AppName = "linkstream"

var (
	ErrInvalidPort      = errors.New("config: port must be between 1 and 65535")
	ErrInvalidHeartbeat = errors.New("config: stream heartbeat must be >= 0")
	ErrInvalidRateLimit = errors.New("config: rate limit must be > 0")
)

// Config is the full application configuration.
type Config struct {
	Port          int                 `mapstructure:"port"`
	Env           string              `mapstructure:"app_env"`
	LogLevel      string              `mapstructure:"log_level"`
	SentryDSN     string              `mapstructure:"sentry_dsn"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Crawl         CrawlConfig         `mapstructure:"crawl"`
	Stream        StreamConfig        `mapstructure:"stream"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

// ObservabilityConfig toggles OpenTelemetry and the Prometheus endpoint.
type ObservabilityConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"` // Comma separated key=value pairs
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// CrawlConfig mirrors crawler.Config with durations expressed in seconds.
type CrawlConfig struct {
	MaxDepth              int     `mapstructure:"max_depth"`
	InterPageDelaySeconds float64 `mapstructure:"inter_page_delay_seconds"`
	PerLinkDelaySeconds   float64 `mapstructure:"per_link_delay_seconds"`
	PageTimeoutSeconds    float64 `mapstructure:"page_timeout_seconds"`
	CheckTimeoutSeconds   float64 `mapstructure:"check_timeout_seconds"`
	MaxRedirects          int     `mapstructure:"max_redirects"`
	UserAgent             string  `mapstructure:"user_agent"`
}

// StreamConfig controls the SSE endpoint.
type StreamConfig struct {
	HeartbeatSeconds float64 `mapstructure:"heartbeat_seconds"` // 0 disables keepalive comments
}

// RateLimitConfig bounds how often a single client may open streams.
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"port":                           "PORT",
	"app_env":                        "APP_ENV",
	"log_level":                      "LOG_LEVEL",
	"sentry_dsn":                     "SENTRY_DSN",
	"observability.enabled":          "OBSERVABILITY_ENABLED",
	"observability.metrics_addr":     "METRICS_ADDR",
	"observability.otlp_endpoint":    "OTEL_EXPORTER_OTLP_ENDPOINT",
	"observability.otlp_headers":     "OTEL_EXPORTER_OTLP_HEADERS",
	"observability.otlp_insecure":    "OTEL_EXPORTER_OTLP_INSECURE",
	"crawl.max_depth":                "CRAWL_MAX_DEPTH",
	"crawl.inter_page_delay_seconds": "CRAWL_INTER_PAGE_DELAY_SECONDS",
	"crawl.per_link_delay_seconds":   "CRAWL_PER_LINK_DELAY_SECONDS",
	"crawl.page_timeout_seconds":     "CRAWL_PAGE_TIMEOUT_SECONDS",
	"crawl.check_timeout_seconds":    "CRAWL_CHECK_TIMEOUT_SECONDS",
	"crawl.max_redirects":            "CRAWL_MAX_REDIRECTS",
	"crawl.user_agent":               "CRAWL_USER_AGENT",
	"stream.heartbeat_seconds":       "STREAM_HEARTBEAT_SECONDS",
	"rate_limit.per_second":          "RATE_LIMIT_PER_SECOND",
	"rate_limit.burst":               "RATE_LIMIT_BURST",
}

// Load builds the configuration. An explicit path must exist; without one the
// XDG config directory and the working directory are searched for
// config.yaml, and a missing file is not an error.
func Load(path string) (*Config, error) {
	// .env.local takes priority for development
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := crawler.DefaultConfig()

	v.SetDefault("port", 8080)
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sentry_dsn", "")

	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.metrics_addr", ":9464")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_headers", "")
	v.SetDefault("observability.otlp_insecure", false)

	v.SetDefault("crawl.max_depth", defaults.MaxDepth)
	v.SetDefault("crawl.inter_page_delay_seconds", defaults.InterPageDelay.Seconds())
	v.SetDefault("crawl.per_link_delay_seconds", defaults.PerLinkDelay.Seconds())
	v.SetDefault("crawl.page_timeout_seconds", defaults.PageTimeout.Seconds())
	v.SetDefault("crawl.check_timeout_seconds", defaults.CheckTimeout.Seconds())
	v.SetDefault("crawl.max_redirects", defaults.MaxRedirects)
	v.SetDefault("crawl.user_agent", defaults.UserAgent)

	v.SetDefault("stream.heartbeat_seconds", 15)

	v.SetDefault("rate_limit.per_second", 1)
	v.SetDefault("rate_limit.burst", 5)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if c.Stream.HeartbeatSeconds < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidHeartbeat, c.Stream.HeartbeatSeconds)
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("%w: %v/s burst %d", ErrInvalidRateLimit, c.RateLimit.PerSecond, c.RateLimit.Burst)
	}
	return c.CrawlerConfig().Validate()
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// CrawlerConfig converts the crawl settings into a crawler.Config.
func (c *Config) CrawlerConfig() *crawler.Config {
	cfg := crawler.DefaultConfig()
	cfg.MaxDepth = c.Crawl.MaxDepth
	cfg.InterPageDelay = seconds(c.Crawl.InterPageDelaySeconds)
	cfg.PerLinkDelay = seconds(c.Crawl.PerLinkDelaySeconds)
	cfg.PageTimeout = seconds(c.Crawl.PageTimeoutSeconds)
	cfg.CheckTimeout = seconds(c.Crawl.CheckTimeoutSeconds)
	cfg.MaxRedirects = c.Crawl.MaxRedirects
	if ua := strings.TrimSpace(c.Crawl.UserAgent); ua != "" {
		cfg.UserAgent = ua
	}
	return cfg
}

// HeartbeatInterval is the keepalive period for SSE streams.
func (c *Config) HeartbeatInterval() time.Duration {
	return seconds(c.Stream.HeartbeatSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
