package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/scrapedeck/internal/config"
)

// -- Test Helper Functions --

func bufferSink() (*bytes.Buffer, zapcore.WriteSyncer) {
	var buf bytes.Buffer
	return &buf, zapcore.AddSync(&buf)
}

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "deck"}, sink)
		GetLogger().Named("shell").Info("console message")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "console message")
		assert.Contains(t, output, colorGreen, "info falls back to the default green")
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "deck.shell.")
	})

	t.Run("should honor configured colors", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "console", Colors: config.ColorConfig{Warn: "blue"}}, sink)
		GetLogger().Warn("tinted")
		Sync()

		assert.Contains(t, buf.String(), colorBlue)
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, sink)
		GetLogger().Warn("json message", zap.String("key", "value"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "json message", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("should filter below the configured level", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "WARN", Format: "json"}, sink)
		GetLogger().Info("hidden")
		Sync()

		assert.Empty(t, buf.String())
	})

	t.Run("should write only to the file when no console is given", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		logFile := filepath.Join(t.TempDir(), "deck.log")

		InitializeFileLogger(config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1})
		GetLogger().Error("to the file")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "to the file")
		assert.Contains(t, string(content), `"level":"ERROR"`, "file output is json")
	})

	t.Run("should fall back to a nop logger with no outputs", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()

		InitializeFileLogger(config.LoggerConfig{Level: "info"})
		assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, sink)

		assert.Same(t, first, GetLogger())
		GetLogger().Info("test")
		Sync()
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		assert.NotNil(t, GetLogger())
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		_, sink := bufferSink()
		Initialize(config.LoggerConfig{Level: "info"}, sink)
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
