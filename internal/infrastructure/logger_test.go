package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseadmin/internal/config"
)

func TestInitializeLogger(t *testing.T) {
	t.Cleanup(ResetLoggerForTesting)

	t.Run("console output", func(t *testing.T) {
		ResetLoggerForTesting()
		logger, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.Same(t, logger, GetLogger())
	})

	t.Run("file output", func(t *testing.T) {
		ResetLoggerForTesting()
		path := filepath.Join(t.TempDir(), "logs", "admin.log")

		logger, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "file", FilePath: path})
		require.NoError(t, err)

		logger.Info("hello", slog.String("k", "v"))
		require.NoError(t, CloseLogFile())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"hello"`)
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		ResetLoggerForTesting()
		first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "console"})
		require.NoError(t, err)
		second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
		require.NoError(t, err)
		assert.Same(t, first, second)
	})
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "with trace")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-123", entry["trace_id"])

	buf.Reset()
	logger.With(slog.String("component", "x")).InfoContext(context.Background(), "no trace")
	entry = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry["trace_id"]
	assert.False(t, ok)
	assert.Equal(t, "x", entry["component"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))
	assert.Empty(t, GetTraceID(nil)) //nolint:staticcheck
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "ABCD****WXYZ", MaskKey("ABCD-1234-WXYZ"))
}
