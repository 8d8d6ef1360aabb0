package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with default config", func(t *testing.T) {
		logger := NewLogger(DefaultLoggingConfig())
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("creates logger with debug level", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "warn", Format: "console", Output: "stderr"})
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("writes to a file path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "service.log")
		logger := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})
		logger.Info().Msg("to file")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithSessionContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSessionContext(zerolog.New(&buf), "session-1")
	logger.Info().Msg("refresh")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "session-1", entry["session_id"])
}

func TestWithRefreshContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRefreshContext(zerolog.New(&buf), 3, "retry")
	logger.Info().Msg("refresh")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, float64(3), entry["attempt"])
	assert.Equal(t, "retry", entry["reason"])
}

func TestWithWorkflowAndActivityContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithWorkflowContext(zerolog.New(&buf), "wf-123", "run-456")
	logger = WithActivityContext(logger, "FetchProfile", 1)
	logger.Info().Msg("activity")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "wf-123", entry["workflow_id"])
	assert.Equal(t, "run-456", entry["workflow_run_id"])
	assert.Equal(t, "FetchProfile", entry["activity_type"])
	assert.Equal(t, float64(1), entry["activity_attempt"])
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithWorkflow(ctx, "wf-1", "run-1")

	logger := LoggerFromContext(ctx, zerolog.New(&buf))
	logger.Info().Msg("ctx")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "session-1", entry["session_id"])
	assert.Equal(t, "wf-1", entry["workflow_id"])
}

func TestTemporalLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewTemporalLogger(zerolog.New(&buf))
	l.Info("worker started", "TaskQueue", "profile-refresh-tasks", "Dangling")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "temporal-sdk", entry["component"])
	assert.Equal(t, "profile-refresh-tasks", entry["TaskQueue"])
	assert.Contains(t, entry, "Dangling")
	assert.Nil(t, entry["Dangling"])
}

func TestTemporalLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewTemporalLogger(zerolog.New(&buf)).With("WorkflowID", "profile-refresh-s1")
	l.Warn("activity failed", "Attempt", 2)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "temporal-sdk", entry["component"])
	assert.Equal(t, "profile-refresh-s1", entry["WorkflowID"])
	assert.Equal(t, float64(2), entry["Attempt"])
	assert.Equal(t, "warn", entry["level"])
}

func TestKeyvalToMap_NonStringKey(t *testing.T) {
	m := keyvalToMap([]interface{}{42, "answer"})
	assert.Equal(t, "answer", m["42"])
}
