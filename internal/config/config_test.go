package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "DATABASE_URL", "TELEGRAM_TOKEN", "TIMEZONE", "LOG_LEVEL", "LOG_JSON",
	"REMINDER_INTERVAL", "DAILY_REPORT_AT", "HTTP_ENABLED", "HTTP_ADDR", "JWT_SECRET",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "API_RATE_LIMIT", "API_RATE_WINDOW",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "SMTP_FROM",
}

// clearEnv isolates a test from the developer's environment and any .env file.
func clearEnv(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "study_planner.db", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, time.Minute, cfg.ReminderInterval)
	assert.Equal(t, "08:00", cfg.DailyReportAt)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLoadValidation(t *testing.T) {
	t.Run("api without secret", func(t *testing.T) {
		clearEnv(t)
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("nothing enabled", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HTTP_ENABLED", "false")
		_, err := Load()
		assert.ErrorContains(t, err, "nothing to run")
	})

	t.Run("bot only", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HTTP_ENABLED", "false")
		t.Setenv("TELEGRAM_TOKEN", "123:abc")
		_, err := Load()
		assert.NoError(t, err)
	})

	t.Run("bad numbers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("REDIS_DB", "one")
		t.Setenv("REMINDER_INTERVAL", "soon")
		_, err := Load()
		assert.ErrorContains(t, err, "REDIS_DB")
		assert.ErrorContains(t, err, "REMINDER_INTERVAL")
	})

	t.Run("unknown zone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.ErrorContains(t, err, "TIMEZONE")
	})
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://planner@localhost/planner
timezone: UTC
reminder_interval: 30s
http:
  addr: ":9090"
  jwt_secret: from-file
  rate_limit: 10
  rate_window: 10s
redis:
  addr: localhost:6379
smtp:
  host: smtp.example.com
  from: planner@example.com
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("API_RATE_WINDOW", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://planner@localhost/planner", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.ReminderInterval)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "from-file", cfg.HTTP.JWTSecret)
	assert.Equal(t, 10, cfg.HTTP.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.HTTP.RateWindow)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.ErrorContains(t, err, "open config file")
}
