package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every LOCALPULSE_ env var that Load() reads.
var allConfigKeys = []string{
	"LOCALPULSE_SECRET_KEY",
	"LOCALPULSE_LISTEN_ADDR",
	"LOCALPULSE_DB_PATH",
	"LOCALPULSE_DATABASE_URL",
	"LOCALPULSE_REFRESH_THRESHOLD",
	"LOCALPULSE_RETRY_ATTEMPTS",
	"LOCALPULSE_RETRY_MIN_DELAY",
	"LOCALPULSE_RETRY_MAX_DELAY",
	"LOCALPULSE_PUBLISH_TIMEOUT",
	"LOCALPULSE_PUBLISH_RATE",
	"LOCALPULSE_FACEBOOK_APP_ID",
	"LOCALPULSE_FACEBOOK_APP_SECRET",
	"LOCALPULSE_GOOGLE_CLIENT_ID",
	"LOCALPULSE_GOOGLE_CLIENT_SECRET",
	"LOCALPULSE_GRAPH_API_VERSION",
	"LOCALPULSE_LOG_FORMAT",
	"LOCALPULSE_LOG_LEVEL",
}

// isolateConfigEnv saves and unsets all LOCALPULSE_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("LOCALPULSE_SECRET_KEY", "s3cret")
	t.Setenv("LOCALPULSE_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("LOCALPULSE_DB_PATH", "/tmp/test.db")
	t.Setenv("LOCALPULSE_DATABASE_URL", "postgres://localhost/localpulse?sslmode=disable")
	t.Setenv("LOCALPULSE_REFRESH_THRESHOLD", "12h")
	t.Setenv("LOCALPULSE_RETRY_ATTEMPTS", "5")
	t.Setenv("LOCALPULSE_RETRY_MIN_DELAY", "500ms")
	t.Setenv("LOCALPULSE_RETRY_MAX_DELAY", "10s")
	t.Setenv("LOCALPULSE_PUBLISH_TIMEOUT", "45s")
	t.Setenv("LOCALPULSE_PUBLISH_RATE", "10")
	t.Setenv("LOCALPULSE_FACEBOOK_APP_ID", "fb-app")
	t.Setenv("LOCALPULSE_FACEBOOK_APP_SECRET", "fb-secret")
	t.Setenv("LOCALPULSE_GOOGLE_CLIENT_ID", "g-client")
	t.Setenv("LOCALPULSE_GOOGLE_CLIENT_SECRET", "g-secret")
	t.Setenv("LOCALPULSE_GRAPH_API_VERSION", "v20.0")
	t.Setenv("LOCALPULSE_LOG_FORMAT", "json")
	t.Setenv("LOCALPULSE_LOG_LEVEL", "debug")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 12*time.Hour, cfg.RefreshThreshold)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryMinDelay)
	assert.Equal(t, 10*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 45*time.Second, cfg.PublishTimeout)
	assert.Equal(t, 10, cfg.PublishRate)
	assert.Equal(t, "fb-app", cfg.FacebookAppID)
	assert.Equal(t, "fb-secret", cfg.FacebookAppSecret)
	assert.Equal(t, "g-client", cfg.GoogleClientID)
	assert.Equal(t, "g-secret", cfg.GoogleClientSecret)
	assert.Equal(t, "v20.0", cfg.GraphAPIVersion)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("LOCALPULSE_SECRET_KEY", "s3cret")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "localpulse.db", cfg.DBPath)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, 24*time.Hour, cfg.RefreshThreshold)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryMinDelay)
	assert.Equal(t, 5*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 30*time.Second, cfg.PublishTimeout)
	assert.Equal(t, 30, cfg.PublishRate)
	assert.Equal(t, "v19.0", cfg.GraphAPIVersion)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingSecretKey(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "LOCALPULSE_SECRET_KEY")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad duration", "LOCALPULSE_REFRESH_THRESHOLD", "one day", "LOCALPULSE_REFRESH_THRESHOLD has invalid duration"},
		{"negative duration", "LOCALPULSE_PUBLISH_TIMEOUT", "-5s", "LOCALPULSE_PUBLISH_TIMEOUT must be positive"},
		{"bad integer", "LOCALPULSE_RETRY_ATTEMPTS", "three", "LOCALPULSE_RETRY_ATTEMPTS has invalid integer"},
		{"zero attempts", "LOCALPULSE_RETRY_ATTEMPTS", "0", "LOCALPULSE_RETRY_ATTEMPTS must be at least 1"},
		{"zero rate", "LOCALPULSE_PUBLISH_RATE", "0", "LOCALPULSE_PUBLISH_RATE must be at least 1"},
		{"max below min", "LOCALPULSE_RETRY_MAX_DELAY", "100ms", "must not be less than LOCALPULSE_RETRY_MIN_DELAY"},
		{"unknown log format", "LOCALPULSE_LOG_FORMAT", "xml", "LOCALPULSE_LOG_FORMAT must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("LOCALPULSE_SECRET_KEY", "s3cret")
			t.Setenv(tt.key, tt.value)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("LOCALPULSE_SECRET_KEY", "s3cret")
	t.Setenv("LOCALPULSE_LISTEN_ADDR", "")
	t.Setenv("LOCALPULSE_RETRY_ATTEMPTS", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.RetryAttempts)
}
