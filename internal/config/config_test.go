package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379", cfg.Store.RedisURL)
	assert.Equal(t, "gemini-2.0-flash-lite", cfg.Gemini.Model)
	assert.Equal(t, 10_000, cfg.RateLimit.PerMinute)
	assert.Equal(t, 100_000, cfg.RateLimit.PerHour)
	assert.Equal(t, 1_000_000, cfg.RateLimit.PerDay)
	assert.Equal(t, "http://localhost:8080", cfg.Share.BaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 3000
  shutdown_timeout: 5s
store:
  driver: memory
gemini:
  api_key: test-key
  model: gemini-1.5-flash
ratelimit:
  per_minute: 500
share:
  base_url: https://speech.example.com
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey.Value())
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 500, cfg.RateLimit.PerMinute)
	// Unset budgets still get defaults
	assert.Equal(t, 100_000, cfg.RateLimit.PerHour)
	assert.Equal(t, "https://speech.example.com", cfg.Share.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 3000\n"), 0600))

	t.Setenv("SERVER_PORT", "4000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("RATELIMIT_PER_MINUTE", "42")
	t.Setenv("SHARE_BASE_URL", "https://env.example.com")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey.Value())
	assert.Equal(t, 42, cfg.RateLimit.PerMinute)
	assert.Equal(t, "https://env.example.com", cfg.Share.BaseURL)
}

func TestShareBaseURLDefaultTracksPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Share.BaseURL)
}

func TestValidateRejectsBadDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")

	_, err := LoadWithFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateRejectsBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "99999")

	_, err := LoadWithFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")

	_, err := LoadWithFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("banana")))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())

	out, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "super-secret")
	assert.Contains(t, string(out), "[REDACTED]")
}
