package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue float64
		expected     float64
	}{
		{name: "env not set, return default", envValue: "", defaultValue: 10, expected: 10},
		{name: "env set to 2.5, return 2.5", envValue: "2.5", defaultValue: 10, expected: 2.5},
		{name: "env set to invalid value, return default", envValue: "fast", defaultValue: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_FLOAT_VALUE"
			if tt.envValue != "" {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}

			assert.Equal(t, tt.expected, getEnvFloat(key, tt.defaultValue))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		expected     int
	}{
		{name: "env not set, return default", envValue: "", defaultValue: 5000, expected: 5000},
		{name: "env set to valid int", envValue: "250", defaultValue: 5000, expected: 250},
		{name: "env set to invalid int, return default", envValue: "not_an_int", defaultValue: 5000, expected: 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_INT_VALUE"
			if tt.envValue != "" {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}

			assert.Equal(t, tt.expected, getEnvInt(key, tt.defaultValue))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{name: "env not set, return default", envValue: "", defaultValue: true, expected: true},
		{name: "env set to false", envValue: "false", defaultValue: true, expected: false},
		{name: "env set to 1", envValue: "1", defaultValue: false, expected: true},
		{name: "env set to garbage, return default", envValue: "maybe", defaultValue: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VALUE"
			if tt.envValue != "" {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}

			assert.Equal(t, tt.expected, getEnvBool(key, tt.defaultValue))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		expected     time.Duration
	}{
		{name: "env not set, return default", envValue: "", defaultValue: 30 * time.Second, expected: 30 * time.Second},
		{name: "env set to 2s", envValue: "2s", defaultValue: 30 * time.Second, expected: 2 * time.Second},
		{name: "env set to invalid duration", envValue: "soon", defaultValue: 30 * time.Second, expected: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_DURATION_VALUE"
			if tt.envValue != "" {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}

			assert.Equal(t, tt.expected, getEnvDuration(key, tt.defaultValue))
		})
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromEnv(dir, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir())
	assert.Equal(t, filepath.Join(dir, "missions.yaml"), cfg.Catalog.Path)
	assert.Equal(t, filepath.Join(dir, "farmboard.db"), cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.Remote.ProbeTimeout)
	assert.Equal(t, 5*time.Second, cfg.Remote.WriteTimeout)
	assert.Equal(t, 2*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Sync.DrainInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Sync.LogRetention)
	assert.Equal(t, time.RFC3339, cfg.Logging.TimeFormat)
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "custom.env")
	content := "FARMBOARD_REMOTE_URL=https://progress.example.com\nFARMBOARD_SYNC_DRAIN_INTERVAL=1m\nFARMBOARD_LOG_LEVEL=debug\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))

	// godotenv does not override variables that are already set
	keys := []string{"FARMBOARD_REMOTE_URL", "FARMBOARD_SYNC_DRAIN_INTERVAL", "FARMBOARD_LOG_LEVEL"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	cfg, err := LoadFromEnv(dir, envFile)
	require.NoError(t, err)

	assert.Equal(t, "https://progress.example.com", cfg.Remote.URL)
	assert.Equal(t, time.Minute, cfg.Sync.DrainInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := LoadFromEnv(t.TempDir(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database config"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "invalid log level"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "invalid log format"},
		{name: "remote url without scheme", mutate: func(c *Config) { c.Remote.URL = "localhost" }, wantErr: "invalid url"},
		{name: "zero probe timeout", mutate: func(c *Config) { c.Remote.ProbeTimeout = 0 }, wantErr: "timeouts must be positive"},
		{name: "zero drain interval", mutate: func(c *Config) { c.Sync.DrainInterval = 0 }, wantErr: "drain interval"},
		{name: "negative log retention", mutate: func(c *Config) { c.Sync.LogRetention = -time.Hour }, wantErr: "log retention"},
		{name: "empty catalog path", mutate: func(c *Config) { c.Catalog.Path = "" }, wantErr: "catalog config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("unknown"))
	assert.Equal(t, slog.Level(9999), ParseLogLevel("none"))
}

func TestSetupConfigDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "farmboard")

	require.NoError(t, SetupConfigDirectory(dir, false))
	assert.FileExists(t, filepath.Join(dir, ".env"))
	assert.FileExists(t, filepath.Join(dir, "missions.yaml"))

	custom := []byte("version: 1\nnetworks: []\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "missions.yaml"), custom, 0644))

	require.NoError(t, SetupConfigDirectory(dir, true))
	data, err := os.ReadFile(filepath.Join(dir, "missions.yaml"))
	require.NoError(t, err)
	assert.Equal(t, custom, data, "existing catalog is kept")

	matches, err := filepath.Glob(filepath.Join(dir, ".env.*.bak"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
