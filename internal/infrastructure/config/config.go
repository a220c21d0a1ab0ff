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

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	Remotes   RemotesConfig   `yaml:"remotes" toml:"remotes"`
	Limits    LimitsConfig    `yaml:"limits" toml:"limits"`
	Worker    WorkerConfig    `yaml:"worker" toml:"worker"`
	HTTP      HTTPConfig      `yaml:"http" toml:"http"`
	Sandbox   SandboxConfig   `yaml:"sandbox" toml:"sandbox"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" toml:"cors"`
}

// ServerConfig holds the admin HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" yaml:"host" toml:"host"`
	Port string `envconfig:"PORT" yaml:"port" toml:"port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RemotesConfig locates the remotes on disk.
type RemotesConfig struct {
	Dir string `envconfig:"REMOTES_DIR" yaml:"dir" toml:"dir"`
}

// LimitsConfig is the per-script resource budget.
type LimitsConfig struct {
	MemoryMB        int   `envconfig:"LUA_MEMORY_MB" yaml:"memory_mb" toml:"memory_mb"`
	MaxInstructions int64 `envconfig:"LUA_MAX_INSTRUCTIONS" yaml:"max_instructions" toml:"max_instructions"`
}

// WorkerConfig tunes the per-remote worker actors.
type WorkerConfig struct {
	QueueSize          int `envconfig:"WORKER_QUEUE_SIZE" yaml:"queue_size" toml:"queue_size"`
	SendRetries        int `envconfig:"WORKER_SEND_RETRIES" yaml:"send_retries" toml:"send_retries"`
	RetryBackoffMS     int `envconfig:"WORKER_RETRY_BACKOFF_MS" yaml:"retry_backoff_ms" toml:"retry_backoff_ms"`
	SubscriberBuffer   int `envconfig:"WORKER_SUBSCRIBER_BUFFER" yaml:"subscriber_buffer" toml:"subscriber_buffer"`
	ShutdownTimeoutSec int `envconfig:"WORKER_SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout_sec" toml:"shutdown_timeout_sec"`
}

// HTTPConfig configures the http capability exposed to scripts.
type HTTPConfig struct {
	TimeoutSec   int     `envconfig:"HTTP_TIMEOUT" yaml:"timeout_sec" toml:"timeout_sec"`
	Retries      int     `envconfig:"HTTP_RETRIES" yaml:"retries" toml:"retries"`
	RateLimitRPS float64 `envconfig:"HTTP_RATE_LIMIT_RPS" yaml:"rate_limit_rps" toml:"rate_limit_rps"`
}

// SandboxConfig toggles host capabilities.
type SandboxConfig struct {
	AllowProcess bool `envconfig:"SANDBOX_ALLOW_PROCESS" yaml:"allow_process" toml:"allow_process"`
}

// RateLimitConfig holds rate limiting configuration for the admin server.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// CORSConfig holds CORS configuration for the admin server.
type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" yaml:"allow_origins" toml:"allow_origins"`
}

// Load loads configuration from environment variables on top of Default.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile layers Default, then a YAML or TOML file, then the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8090",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Remotes: RemotesConfig{
			Dir: "remotes",
		},
		Limits: LimitsConfig{
			MemoryMB:        64,
			MaxInstructions: 100_000_000,
		},
		Worker: WorkerConfig{
			QueueSize:          100,
			SendRetries:        10,
			RetryBackoffMS:     10,
			SubscriberBuffer:   100,
			ShutdownTimeoutSec: 10,
		},
		HTTP: HTTPConfig{
			TimeoutSec:   30,
			Retries:      3,
			RateLimitRPS: 0,
		},
		Sandbox: SandboxConfig{
			AllowProcess: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
	}
}

// Validate rejects values the workers cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Worker.QueueSize <= 0:
		return fmt.Errorf("invalid config: worker queue size must be positive")
	case c.Worker.SendRetries <= 0:
		return fmt.Errorf("invalid config: worker send retries must be positive")
	case c.Worker.SubscriberBuffer <= 0:
		return fmt.Errorf("invalid config: subscriber buffer must be positive")
	case c.Limits.MemoryMB < 0 || c.Limits.MaxInstructions < 0:
		return fmt.Errorf("invalid config: limits must not be negative")
	}
	return nil
}

// Addr returns the admin server listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// ScriptLimits converts the configured budget for the sandbox.
func (c LimitsConfig) ScriptLimits() types.Limits {
	return types.Limits{MemoryMB: c.MemoryMB, MaxInstructions: c.MaxInstructions}
}

// RetryBackoff returns the delay between send attempts.
func (c WorkerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// ShutdownTimeout returns how long shutdown waits for destroy handlers.
func (c WorkerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Timeout returns the per-request timeout of the http capability.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}
