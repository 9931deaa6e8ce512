package loggy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(buf *bytes.Buffer) *Logger {
	return NewWithHandler(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggerWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := captureLogger(&buf).With("component", "sync")

	logger.Info("drained queue", "count", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "drained queue", entry["msg"])
	assert.Equal(t, "sync", entry["component"])
	assert.Equal(t, float64(2), entry["count"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := captureLogger(&buf)

	logger.WithError(errors.New("boom")).Warn("remote write failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "*errors.errorString", entry["error_type"])
	assert.Same(t, logger, logger.WithError(nil))
}

func TestRequestIDContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), captureLogger(&buf))
	ctx = WithRequestID(ctx, "req-123")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	FromContext(ctx).Info("handled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Info("nothing")
		logger.With("a", 1).Error("still nothing")
	})
}

func TestFileOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = filepath.Join(t.TempDir(), "logs", "farmboard.log")

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("written to file")
	assert.NoError(t, logger.Close())
	assert.FileExists(t, cfg.Output)
}
