package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDir returns ~/.farmboard
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".farmboard"), nil
}

// LoadFromEnv loads configuration from environment variables.
// configDir defaults to ~/.farmboard and envFilePath to <configDir>/.env.
// FARMBOARD_ENV_FILE overrides both.
func LoadFromEnv(configDir string, envFilePath string) (*Config, error) {
	cfg := New()

	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	cfg.configDir = configDir

	if envFilePath == "" {
		envFilePath = filepath.Join(configDir, ".env")
	}

	if custom := getEnvString("FARMBOARD_ENV_FILE", ""); custom != "" {
		if err := godotenv.Load(custom); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", custom, err)
		}
	} else if err := godotenv.Load(envFilePath); err != nil {
		// fall back to ./.env, which may not exist either
		_ = godotenv.Load()
	}

	cfg.Catalog = CatalogConfig{
		Path:  getEnvString("FARMBOARD_CATALOG_PATH", filepath.Join(configDir, "missions.yaml")),
		Watch: getEnvBool("FARMBOARD_CATALOG_WATCH", true),
	}

	cfg.Database = DatabaseConfig{
		Path:            getEnvString("FARMBOARD_DB_PATH", filepath.Join(configDir, "farmboard.db")),
		BusyTimeout:     getEnvInt("FARMBOARD_DB_BUSY_TIMEOUT", 5000),
		JournalMode:     getEnvString("FARMBOARD_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("FARMBOARD_DB_SYNCHRONOUS_MODE", "NORMAL"),
		ConnMaxLife:     getEnvDuration("FARMBOARD_DB_CONN_MAX_LIFE", 5*time.Minute),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("FARMBOARD_LOG_LEVEL", "info"),
		Format:     getEnvString("FARMBOARD_LOG_FORMAT", "text"),
		Output:     getEnvString("FARMBOARD_LOG_OUTPUT", filepath.Join(configDir, "farmboard.log")),
		AddSource:  getEnvBool("FARMBOARD_LOG_ADD_SOURCE", false),
		TimeFormat: getTimeFormat(getEnvString("FARMBOARD_LOG_TIME_FORMAT", "RFC3339")),
		MaxSizeMB:  getEnvInt("FARMBOARD_LOG_MAX_SIZE_MB", 10),
		MaxBackups: getEnvInt("FARMBOARD_LOG_MAX_BACKUPS", 3),
		MaxAgeDays: getEnvInt("FARMBOARD_LOG_MAX_AGE_DAYS", 28),
	}

	cfg.Remote = RemoteConfig{
		URL:               getEnvString("FARMBOARD_REMOTE_URL", "http://localhost:8787"),
		ProbeTimeout:      getEnvDuration("FARMBOARD_REMOTE_PROBE_TIMEOUT", 3*time.Second),
		WriteTimeout:      getEnvDuration("FARMBOARD_REMOTE_WRITE_TIMEOUT", 5*time.Second),
		RequestsPerSecond: getEnvFloat("FARMBOARD_REMOTE_REQUESTS_PER_SECOND", 10),
		Burst:             getEnvInt("FARMBOARD_REMOTE_BURST", 5),
	}

	cfg.Sync = SyncConfig{
		PollInterval:  getEnvDuration("FARMBOARD_SYNC_POLL_INTERVAL", 2*time.Second),
		DrainInterval: getEnvDuration("FARMBOARD_SYNC_DRAIN_INTERVAL", 30*time.Second),
		LogRetention:  getEnvDuration("FARMBOARD_SYNC_LOG_RETENTION", 7*24*time.Hour),
	}

	cfg.Server = ServerConfig{
		Addr:         getEnvString("FARMBOARD_SERVER_ADDR", ":8787"),
		DatabasePath: getEnvString("FARMBOARD_SERVER_DB_PATH", filepath.Join(configDir, "farmboard-server.db")),
		Environment:  getEnvString("FARMBOARD_SERVER_ENVIRONMENT", "development"),
		ReadTimeout:  getEnvDuration("FARMBOARD_SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getEnvDuration("FARMBOARD_SERVER_WRITE_TIMEOUT", 10*time.Second),
	}

	return cfg, cfg.Validate()
}
