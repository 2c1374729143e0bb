package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"chrome-extension://*", "moz-extension://*"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, 30*time.Second, cfg.Executor.Timeout.Duration)
	assert.Equal(t, 0, cfg.Executor.RetryCount)
	assert.Equal(t, uint32(10), cfg.Executor.BreakerFailures)

	assert.Equal(t, "https://globaltelko.sharepoint.com", cfg.Docstore.BaseURL)
	assert.Equal(t, ".sharepoint.com", cfg.Docstore.CookieDomain)
	assert.Equal(t, "/sites/DWVD", cfg.Docstore.Site)

	assert.Equal(t, time.Second, cfg.Relay.ReadyDelay.Duration)
	assert.Equal(t, time.Second, cfg.Page.PingTimeout.Duration)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "0.0.0.0",
		"EXECUTOR_TIMEOUT":       "5s",
		"EXECUTOR_RETRY_COUNT":   "2",
		"TRACKER_URL":            "https://jira.example.com",
		"DOCSTORE_BASE_URL":      "https://tenant.sharepoint.com",
		"DOCSTORE_COOKIE_DOMAIN": ".example.com",
		"RELAY_READY_DELAY":      "250ms",
		"PAGE_PING_TIMEOUT":      "2s",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_ENABLED":     "false",
		"ALLOWED_ORIGINS":        "https://board.example.com,chrome-extension://abc",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Executor.Timeout.Duration)
	assert.Equal(t, 2, cfg.Executor.RetryCount)
	assert.Equal(t, "https://jira.example.com", cfg.Tracker.URL)
	assert.Equal(t, "https://tenant.sharepoint.com", cfg.Docstore.BaseURL)
	assert.Equal(t, ".example.com", cfg.Docstore.CookieDomain)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.ReadyDelay.Duration)
	assert.Equal(t, 2*time.Second, cfg.Page.PingTimeout.Duration)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"https://board.example.com", "chrome-extension://abc"}, cfg.Server.AllowedOrigins)

	// untouched sections keep their defaults
	assert.Equal(t, "/sites/DWVD", cfg.Docstore.Site)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("RELAY_READY_DELAY", "soon")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	content := `
server:
  port: "7000"
docstore:
  base_url: https://files.example.com
relay:
  ready_delay: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "https://files.example.com", cfg.Docstore.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Relay.ReadyDelay.Duration)
	assert.Equal(t, ".sharepoint.com", cfg.Docstore.CookieDomain)
}

func TestLoadTOMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.toml")
	content := `
[server]
port = "7001"

[tracker]
url = "https://jira.file.example.com"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TRACKER_URL", "https://jira.env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Server.Port)
	assert.Equal(t, "https://jira.env.example.com", cfg.Tracker.URL)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.ini")
	require.NoError(t, os.WriteFile(path, []byte("port=1"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
