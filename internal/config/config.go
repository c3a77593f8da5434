// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables before mapping them onto
// config keys. SITEWATCH_SERVER__PORT overrides server.port.
const envPrefix = "SITEWATCH_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Monitor       MonitorConfig       `koanf:"monitor"`
	Classifier    ClassifierConfig    `koanf:"classifier"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	Migrate         bool          `koanf:"migrate"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// MonitorConfig contains poller settings.
type MonitorConfig struct {
	MaxConcurrentProbes int           `koanf:"max_concurrent_probes"`
	DefaultProbeTimeout time.Duration `koanf:"default_probe_timeout"`
}

// ClassifierConfig contains severity classifier settings.
type ClassifierConfig struct {
	FailureThreshold int `koanf:"failure_threshold"`
	HistoryLimit     int `koanf:"history_limit"`
}

// NotificationsConfig contains outbound notification settings.
type NotificationsConfig struct {
	Enabled    bool          `koanf:"enabled"`
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout"`
	RateLimit  float64       `koanf:"rate_limit"`
	Worker     WorkerConfig  `koanf:"worker"`
	Retry      RetryConfig   `koanf:"retry"`
}

// WorkerConfig contains notification worker settings.
type WorkerConfig struct {
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	NumWorkers   int           `koanf:"num_workers"`
}

// RetryConfig contains notification retry settings.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// Default returns the configuration defaults applied before file and
// environment sources.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 3,
			Migrate:         true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Monitor: MonitorConfig{
			MaxConcurrentProbes: 20,
			DefaultProbeTimeout: 10 * time.Second,
		},
		Classifier: ClassifierConfig{
			FailureThreshold: 2,
			HistoryLimit:     5,
		},
		Notifications: NotificationsConfig{
			Enabled:   false,
			Timeout:   10 * time.Second,
			RateLimit: 5,
			Worker: WorkerConfig{
				BatchSize:    50,
				PollInterval: 5 * time.Second,
				NumWorkers:   2,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				InitialBackoff:    1 * time.Second,
				MaxBackoff:        5 * time.Minute,
				BackoffMultiplier: 2.0,
			},
		},
	}
}

// Load reads configuration from an optional YAML file and SITEWATCH_*
// environment variables, layered over defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Double underscore separates nesting levels so single underscores
	// survive inside key names (SITEWATCH_DATABASE__MAX_OPEN_CONNS).
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Monitor.MaxConcurrentProbes <= 0 {
		return fmt.Errorf("monitor.max_concurrent_probes must be positive")
	}
	if c.Classifier.FailureThreshold < 1 {
		return fmt.Errorf("classifier.failure_threshold must be at least 1")
	}
	if c.Classifier.HistoryLimit < c.Classifier.FailureThreshold {
		return fmt.Errorf("classifier.history_limit must be at least the failure threshold")
	}
	if c.Notifications.Enabled && c.Notifications.WebhookURL == "" {
		return fmt.Errorf("notifications.webhook_url is required when notifications are enabled")
	}
	return nil
}
