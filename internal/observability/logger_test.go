package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/veilcast/vidprobe-cli/internal/config"
)

// setupTestLogger initializes the global logger to write to a buffer.
func setupTestLogger(cfg config.LoggerConfig) *bytes.Buffer {
	buf := new(bytes.Buffer)
	Initialize(cfg, zapcore.AddSync(buf))
	return buf
}

func TestInitializeLogger(t *testing.T) {
	t.Run("console format", func(t *testing.T) {
		ResetForTest()

		buf := setupTestLogger(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "test-service",
		})

		GetLogger().Info("hello from the console")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "hello from the console")
		assert.Contains(t, output, "test-service")
	})

	t.Run("json format", func(t *testing.T) {
		ResetForTest()

		buf := setupTestLogger(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "test-service",
		})

		GetLogger().Info("structured entry")
		Sync()

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "structured entry", entry["msg"])
		assert.Equal(t, "INFO", entry["level"])
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()

		buf := setupTestLogger(config.LoggerConfig{
			Level:       "chatty",
			Format:      "json",
			ServiceName: "test-service",
		})

		GetLogger().Debug("should be suppressed")
		GetLogger().Info("should appear")
		Sync()

		assert.NotContains(t, buf.String(), "should be suppressed")
		assert.Contains(t, buf.String(), "should appear")
	})
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger(), "fallback logger must never be nil")
}
