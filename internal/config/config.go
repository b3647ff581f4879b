// Package config provides centralized configuration management for the
// splitter. It loads configuration from environment variables with sensible
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Split    SplitConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
	Database DatabaseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body.
	// Generous, since a whole upload has to arrive within it (default: 5m)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"5m"`

	// WriteTimeout is the maximum duration for writing a response
	// (default: 0s, disabled for SSE progress streams)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// SplitConfig holds split engine and job lifecycle settings.
type SplitConfig struct {
	// Capacity is the maximum number of data rows per output chunk
	// (default: 49999)
	Capacity int `env:"SPLIT_CAPACITY" default:"49999"`

	// MaxFileSize is the maximum allowed input size in bytes (default: 200MB)
	MaxFileSize int64 `env:"SPLIT_MAX_FILE_SIZE" default:"209715200"`

	// MaxConcurrent is the maximum number of parallel split jobs (default: 4)
	MaxConcurrent int `env:"SPLIT_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long an upload waits for a free job slot (default: 30s)
	MaxWait time.Duration `env:"SPLIT_MAX_WAIT" default:"30s"`

	// Timeout is the per-job deadline (default: 10m)
	Timeout time.Duration `env:"SPLIT_TIMEOUT" default:"10m"`

	// Retention is how long finished jobs and their chunk files remain
	// downloadable (default: 30m)
	Retention time.Duration `env:"SPLIT_RETENTION" default:"30m"`

	// WorkDir is where inputs are spooled and chunks are written.
	// A directory under the system temp dir is used when empty.
	WorkDir string `env:"SPLIT_WORK_DIR"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the per-IP request limit (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// DatabaseConfig holds the optional job history database settings.
type DatabaseConfig struct {
	// URL is the Postgres connection string. Job history recording is
	// disabled when unset. Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of pooled connections (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HistoryEnabled reports whether a job history database is configured.
func (c *Config) HistoryEnabled() bool {
	return c.Database.URL != ""
}
