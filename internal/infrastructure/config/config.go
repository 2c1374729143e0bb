package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Version is the bridge API version reported to page code.
const Version = "2.0.3"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Executor  ExecutorConfig  `yaml:"executor" toml:"executor"`
	Tracker   TrackerConfig   `yaml:"tracker" toml:"tracker"`
	Docstore  DocstoreConfig  `yaml:"docstore" toml:"docstore"`
	Relay     RelayConfig     `yaml:"relay" toml:"relay"`
	Page      PageConfig      `yaml:"page" toml:"page"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds executor HTTP server configuration.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host           string   `envconfig:"HOST" yaml:"host" toml:"host"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" yaml:"allowed_origins" toml:"allowed_origins"`
	ShutdownGrace  Duration `envconfig:"SHUTDOWN_GRACE" yaml:"shutdown_grace" toml:"shutdown_grace"`
}

// ExecutorConfig holds outbound HTTP client configuration.
type ExecutorConfig struct {
	Timeout         Duration `envconfig:"EXECUTOR_TIMEOUT" yaml:"timeout" toml:"timeout"`
	RetryCount      int      `envconfig:"EXECUTOR_RETRY_COUNT" yaml:"retry_count" toml:"retry_count"`
	RequestsPerSec  float64  `envconfig:"EXECUTOR_RPS" yaml:"rps" toml:"rps"`
	UserAgent       string   `envconfig:"EXECUTOR_USER_AGENT" yaml:"user_agent" toml:"user_agent"`
	BreakerFailures uint32   `envconfig:"EXECUTOR_BREAKER_FAILURES" yaml:"breaker_failures" toml:"breaker_failures"`
	BreakerTimeout  Duration `envconfig:"EXECUTOR_BREAKER_TIMEOUT" yaml:"breaker_timeout" toml:"breaker_timeout"`
}

// TrackerConfig holds issue tracker configuration.
type TrackerConfig struct {
	URL string `envconfig:"TRACKER_URL" yaml:"url" toml:"url"`
}

// DocstoreConfig holds document store configuration.
type DocstoreConfig struct {
	BaseURL      string `envconfig:"DOCSTORE_BASE_URL" yaml:"base_url" toml:"base_url"`
	CookieDomain string `envconfig:"DOCSTORE_COOKIE_DOMAIN" yaml:"cookie_domain" toml:"cookie_domain"`
	Site         string `envconfig:"DOCSTORE_SITE" yaml:"site" toml:"site"`
}

// RelayConfig holds relay configuration.
type RelayConfig struct {
	ReadyDelay     Duration `envconfig:"RELAY_READY_DELAY" yaml:"ready_delay" toml:"ready_delay"`
	ForwardTimeout Duration `envconfig:"RELAY_FORWARD_TIMEOUT" yaml:"forward_timeout" toml:"forward_timeout"`
	RuntimeURL     string   `envconfig:"RELAY_RUNTIME_URL" yaml:"runtime_url" toml:"runtime_url"`
}

// PageConfig holds page client configuration.
type PageConfig struct {
	PingTimeout Duration `envconfig:"PAGE_PING_TIMEOUT" yaml:"ping_timeout" toml:"ping_timeout"`
}

// StorageConfig holds persistent state configuration.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" yaml:"path" toml:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration read from strings such as "1s" or "5m".
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load resolves configuration from defaults, the optional file at path and
// the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			Host:           "127.0.0.1",
			AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
			ShutdownGrace:  D(10 * time.Second),
		},
		Executor: ExecutorConfig{
			Timeout:         D(30 * time.Second),
			RetryCount:      0,
			RequestsPerSec:  0,
			UserAgent:       "SprintBridge/" + Version,
			BreakerFailures: 10,
			BreakerTimeout:  D(30 * time.Second),
		},
		Docstore: DocstoreConfig{
			BaseURL:      "https://globaltelko.sharepoint.com",
			CookieDomain: ".sharepoint.com",
			Site:         "/sites/DWVD",
		},
		Relay: RelayConfig{
			ReadyDelay:     D(time.Second),
			ForwardTimeout: D(5 * time.Minute),
			RuntimeURL:     "ws://127.0.0.1:8000/runtime",
		},
		Page: PageConfig{
			PingTimeout: D(time.Second),
		},
		Storage: StorageConfig{
			Path: filepath.Join(os.TempDir(), "sprintbridge", "state.db"),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
