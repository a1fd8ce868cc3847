// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/nimbuswx/nimbus/internal/weather"
)

const (
	maxPortNumber      = 65535
	maxCacheTTLMinutes = 7 * 24 * 60
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete process configuration.
type Config struct {
	App       AppConfig
	Upstream  UpstreamConfig
	Fetch     FetchConfig
	Cache     CacheConfig
	Refresh   RefreshConfig
	Telemetry TelemetryConfig
	PubSub    PubSubConfig
}

// AppConfig holds HTTP server and logging settings.
type AppConfig struct {
	Port       int    `envconfig:"APP_PORT" default:"8080"`
	Env        string `envconfig:"APP_ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	RequireTLS bool   `envconfig:"REQUIRE_TLS" default:"false"`
}

// UpstreamConfig holds the weather provider settings.
type UpstreamConfig struct {
	APIKey         string        `envconfig:"OPENWEATHER_API_KEY"`
	BaseURL        string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5"`
	Timeout        time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	BreakerEnabled bool          `envconfig:"BREAKER_ENABLED" default:"true"`
}

// FetchConfig holds the retry policy.
type FetchConfig struct {
	MaxAttempts    int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"3"`
	BaseDelay      time.Duration `envconfig:"FETCH_BASE_DELAY" default:"1s"`
	MaxConcurrency int           `envconfig:"FETCH_MAX_CONCURRENCY" default:"0"`
}

// CacheConfig holds observation cache settings.
type CacheConfig struct {
	TTLMinutes      int           `envconfig:"CACHE_TTL_MINUTES" default:"30"`
	SweepInterval   time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"5m"`
	FallbackEnabled bool          `envconfig:"CACHE_FALLBACK_ENABLED" default:"true"`
}

// TTL returns the cache time-to-live.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// RefreshConfig holds the background refresh settings.
type RefreshConfig struct {
	Enabled   bool          `envconfig:"REFRESH_ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"REFRESH_INTERVAL" default:"15m"`
	Timeout   time.Duration `envconfig:"REFRESH_TIMEOUT" default:"2m"`
	Locations LocationList  `envconfig:"WEATHER_LOCATIONS"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

// PubSubConfig holds the on-demand job subscription. Empty values disable it.
type PubSubConfig struct {
	ProjectID    string `envconfig:"PUBSUB_PROJECT_ID"`
	Subscription string `envconfig:"PUBSUB_SUBSCRIPTION"`
}

// Enabled reports whether both project and subscription are set.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Subscription != ""
}

// LocationList decodes "lat:lon:city:country" entries separated by ";".
type LocationList []weather.Location

// Decode implements envconfig.Decoder.
func (l *LocationList) Decode(value string) error {
	var out LocationList
	for _, raw := range strings.Split(value, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) != 4 {
			return fmt.Errorf("location %q: want lat:lon:city:country", raw)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return fmt.Errorf("location %q: latitude: %w", raw, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return fmt.Errorf("location %q: longitude: %w", raw, err)
		}
		loc, err := weather.NewLocation(lat, lon, parts[2], parts[3])
		if err != nil {
			return fmt.Errorf("location %q: %w", raw, err)
		}
		out = append(out, loc)
	}
	*l = out
	return nil
}

// Load reads an optional .env file and then the environment. A missing .env
// file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads and validates the environment without touching .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would make the pipeline misbehave.
func (c *Config) Validate() error {
	switch {
	case c.App.Port < 1 || c.App.Port > maxPortNumber:
		return invalid("APP_PORT must be between 1 and %d", maxPortNumber)
	case c.Upstream.BaseURL == "":
		return invalid("OPENWEATHER_BASE_URL cannot be empty")
	case !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://"):
		return invalid("OPENWEATHER_BASE_URL must start with http:// or https://")
	case c.Upstream.Timeout <= 0:
		return invalid("UPSTREAM_TIMEOUT must be positive")
	case c.Fetch.MaxAttempts < 1:
		return invalid("FETCH_MAX_ATTEMPTS must be at least 1")
	case c.Fetch.BaseDelay < 0:
		return invalid("FETCH_BASE_DELAY cannot be negative")
	case c.Fetch.MaxConcurrency < 0:
		return invalid("FETCH_MAX_CONCURRENCY cannot be negative")
	case c.Cache.TTLMinutes < 0 || c.Cache.TTLMinutes > maxCacheTTLMinutes:
		return invalid("CACHE_TTL_MINUTES must be between 0 and %d", maxCacheTTLMinutes)
	case c.Cache.SweepInterval < 0:
		return invalid("CACHE_SWEEP_INTERVAL cannot be negative")
	case c.Refresh.Enabled && c.Refresh.Interval < time.Minute:
		return invalid("REFRESH_INTERVAL must be at least 1m")
	case c.Refresh.Timeout <= 0:
		return invalid("REFRESH_TIMEOUT must be positive")
	}

	if _, err := zerolog.ParseLevel(c.App.LogLevel); err != nil {
		return invalid("LOG_LEVEL %q: %v", c.App.LogLevel, err)
	}
	return nil
}

// Level returns the parsed log level.
func (a AppConfig) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(a.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
