// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	SecretKey   string
	ListenAddr  string
	DBPath      string
	DatabaseURL string

	RefreshThreshold time.Duration
	RetryAttempts    int
	RetryMinDelay    time.Duration
	RetryMaxDelay    time.Duration
	PublishTimeout   time.Duration
	PublishRate      int // publishes per minute per tenant

	FacebookAppID      string
	FacebookAppSecret  string
	GoogleClientID     string
	GoogleClientSecret string
	GraphAPIVersion    string

	LogFormat string
	LogLevel  string
}

// UsePostgres reports whether credentials and history live in Postgres
// rather than the local SQLite file.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// LOCALPULSE_SECRET_KEY is required; every stored credential is encrypted with it.
// Optional variables with defaults: LOCALPULSE_LISTEN_ADDR (127.0.0.1:8080),
// LOCALPULSE_DB_PATH (localpulse.db), LOCALPULSE_REFRESH_THRESHOLD (24h),
// LOCALPULSE_RETRY_ATTEMPTS (3), LOCALPULSE_RETRY_MIN_DELAY (1s),
// LOCALPULSE_RETRY_MAX_DELAY (5s), LOCALPULSE_PUBLISH_TIMEOUT (30s),
// LOCALPULSE_PUBLISH_RATE (30), LOCALPULSE_GRAPH_API_VERSION (v19.0),
// LOCALPULSE_LOG_FORMAT (text), LOCALPULSE_LOG_LEVEL (info).
func Load() (*Config, error) {
	secret := os.Getenv("LOCALPULSE_SECRET_KEY")
	if secret == "" {
		return nil, errors.New("LOCALPULSE_SECRET_KEY is required: stored platform credentials are encrypted with it")
	}

	cfg := &Config{
		SecretKey:          secret,
		ListenAddr:         stringEnv("LOCALPULSE_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:             stringEnv("LOCALPULSE_DB_PATH", "localpulse.db"),
		DatabaseURL:        os.Getenv("LOCALPULSE_DATABASE_URL"),
		FacebookAppID:      os.Getenv("LOCALPULSE_FACEBOOK_APP_ID"),
		FacebookAppSecret:  os.Getenv("LOCALPULSE_FACEBOOK_APP_SECRET"),
		GoogleClientID:     os.Getenv("LOCALPULSE_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("LOCALPULSE_GOOGLE_CLIENT_SECRET"),
		GraphAPIVersion:    stringEnv("LOCALPULSE_GRAPH_API_VERSION", "v19.0"),
		LogFormat:          stringEnv("LOCALPULSE_LOG_FORMAT", "text"),
		LogLevel:           stringEnv("LOCALPULSE_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RefreshThreshold, err = durationEnv("LOCALPULSE_REFRESH_THRESHOLD", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RetryMinDelay, err = durationEnv("LOCALPULSE_RETRY_MIN_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = durationEnv("LOCALPULSE_RETRY_MAX_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PublishTimeout, err = durationEnv("LOCALPULSE_PUBLISH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryAttempts, err = intEnv("LOCALPULSE_RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.PublishRate, err = intEnv("LOCALPULSE_PUBLISH_RATE", 30); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RetryMaxDelay < c.RetryMinDelay {
		return fmt.Errorf("LOCALPULSE_RETRY_MAX_DELAY (%s) must not be less than LOCALPULSE_RETRY_MIN_DELAY (%s)",
			c.RetryMaxDelay, c.RetryMinDelay)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOCALPULSE_LOG_FORMAT must be \"json\" or \"text\", got %q", c.LogFormat)
	}
	return nil
}

func stringEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// durationEnv parses a positive duration.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}

// intEnv parses a positive integer.
func intEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if parsed < 1 {
		return 0, fmt.Errorf("%s must be at least 1, got %d", key, parsed)
	}
	return parsed, nil
}
