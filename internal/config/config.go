// Package config loads farmboard configuration from the environment and an
// optional .env file
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Catalog  CatalogConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Server   ServerConfig

	configDir string
}

// CatalogConfig locates the mission catalog
type CatalogConfig struct {
	Path  string // Path to missions.yaml
	Watch bool   // Reload the catalog when the file changes (watch command)
}

// DatabaseConfig represents the local SQLite database
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	ConnMaxLife     time.Duration // Maximum connection lifetime
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error, none
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool
	TimeFormat string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RemoteConfig describes the remote progress store the client syncs with
type RemoteConfig struct {
	URL               string        // Base URL of the progress API
	ProbeTimeout      time.Duration // Liveness probe timeout
	WriteTimeout      time.Duration // Fetch, upsert and delete timeout
	RequestsPerSecond float64       // Outgoing request rate, 0 disables limiting
	Burst             int
}

// SyncConfig controls the periodic tasks of the progress facade
type SyncConfig struct {
	PollInterval  time.Duration // Pending-count refresh
	DrainInterval time.Duration // Background probe + drain
	LogRetention  time.Duration // Age after which sync log rows are pruned, 0 keeps them forever
}

// ServerConfig configures the bundled remote progress store
type ServerConfig struct {
	Addr         string        // Listen address
	DatabasePath string        // SQLite file holding users_progress
	Environment  string        // Reported by /api/env-check
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout
}

// New returns a new empty Config
func New() *Config {
	return &Config{}
}

// Dir returns the directory the configuration was loaded from
func (c *Config) Dir() string {
	return c.configDir
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.validateRemote(); err != nil {
		return fmt.Errorf("remote config: %w", err)
	}
	if err := c.validateSync(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog config: path cannot be empty")
	}
	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Database.Path), 0755); err != nil {
			return fmt.Errorf("failed to create directory for database: %w", err)
		}
	}
	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("busy timeout must be positive")
	}
	if c.Database.ConnMaxLife <= 0 {
		return fmt.Errorf("connection max life must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	u, err := url.Parse(c.Remote.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url: %s", c.Remote.URL)
	}
	if c.Remote.ProbeTimeout <= 0 || c.Remote.WriteTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Remote.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Sync.DrainInterval <= 0 {
		return fmt.Errorf("drain interval must be positive")
	}
	if c.Sync.LogRetention < 0 {
		return fmt.Errorf("log retention cannot be negative")
	}
	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 from the environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getTimeFormat converts a named time format to its layout
func getTimeFormat(name string) string {
	switch name {
	case "RFC3339":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "Kitchen":
		return time.Kitchen
	case "DateTime":
		return time.DateTime
	case "":
		return time.RFC3339
	default:
		return name
	}
}
