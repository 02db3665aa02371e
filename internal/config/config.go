// Package config provides centralized configuration management for the application.
// Configuration comes from an optional TOML file and environment variables,
// with sensible defaults. Everything is validated on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres" // pgxpool, COPY inserts
	DriverPgxSQL   = "pgx"      // database/sql over the pgx stdlib driver
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Database DatabaseConfig  `toml:"database"`
	Sync     SyncConfig      `toml:"sync"`
	Rate     RateLimitConfig `toml:"rate"`
	Security SecurityConfig  `toml:"security"`
	Logging  LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `toml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `toml:"port" env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `toml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 5m)
	WriteTimeout time.Duration `toml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `toml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 3m)
	RequestTimeout time.Duration `toml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"3m"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres, pgx, sqlite or memory (default: postgres)
	Driver string `toml:"driver" env:"STORE_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres and pgx drivers.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `toml:"url" env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: cpsync.db)
	SQLitePath string `toml:"sqlite_path" env:"SQLITE_PATH" default:"cpsync.db"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `toml:"max_conns" env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `toml:"min_conns" env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `toml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `toml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the schema on startup (default: true)
	AutoMigrate bool `toml:"auto_migrate" env:"DB_AUTO_MIGRATE" default:"true"`
}

// SyncConfig holds import and replace-sync settings.
type SyncConfig struct {
	// BatchSize is the number of rows per insert chunk (default: 500)
	BatchSize int `toml:"batch_size" env:"SYNC_BATCH_SIZE" default:"500"`

	// TxTimeout bounds the replace transaction (default: 2m)
	TxTimeout time.Duration `toml:"tx_timeout" env:"SYNC_TX_TIMEOUT" default:"2m"`

	// VerifyTimeout bounds the post-commit read-back (default: 30s)
	VerifyTimeout time.Duration `toml:"verify_timeout" env:"SYNC_VERIFY_TIMEOUT" default:"30s"`

	// MaxConcurrent is the maximum number of parallel sync runs (default: 4)
	MaxConcurrent int `toml:"max_concurrent" env:"SYNC_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a run waits for a slot (default: 30s)
	MaxWait time.Duration `toml:"max_wait" env:"SYNC_MAX_WAIT" default:"30s"`

	// MaxFileSize is the maximum workbook upload size in bytes (default: 32MB)
	MaxFileSize int64 `toml:"max_file_size" env:"SYNC_MAX_FILE_SIZE" default:"33554432"`

	// VocabularyFile is an optional YAML file of extra sheet name aliases
	VocabularyFile string `toml:"vocabulary_file" env:"SHEET_VOCABULARY_FILE"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `toml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `toml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SyncLimit is requests per minute for sync and import endpoints (default: 10)
	SyncLimit int `toml:"sync_limit" env:"RATE_LIMIT_SYNC" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `toml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// RequireAPIKey guards the mutating API routes with X-API-Key (default: false)
	RequireAPIKey bool `toml:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `toml:"api_keys" env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `toml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `toml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
