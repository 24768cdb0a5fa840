package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(&Config{
		Level:  level,
		Output: buf,
	})
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"unknown", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelDebug)

	logger.Info("test message %d", 7)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "test message 7")
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelWarn)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelInfo).WithComponent("Router")

	logger.Info("matched %s", "open_website")

	assert.Contains(t, buf.String(), "[Router] matched open_website")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf, LevelInfo)
	logger := base.WithField("session", "abc").WithFields(map[string]interface{}{"step": 2})

	logger.Info("planning")

	out := buf.String()
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "step=2")
	assert.Equal(t, map[string]interface{}{"session": "abc", "step": 2}, logger.Fields())
	assert.Empty(t, base.Fields(), "parent logger must not be mutated")
}

func TestLoggerShowCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelInfo, ShowCaller: true, Output: &buf})

	logger.Info("with caller")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestLoggerFileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "zira.log")

	logger := New(&Config{Level: LevelInfo, Output: &buf, FilePath: path})
	logger.WithComponent("Session").Info("checkpoint saved")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "[Session] checkpoint saved", entry["message"])
}

func TestGlobalLogger(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	var buf bytes.Buffer
	SetGlobal(newTestLogger(&buf, LevelDebug))

	Info("global info")
	Debug("global debug")
	SetLevel(LevelError)
	Warn("suppressed warn")
	Error("global error")

	out := buf.String()
	assert.Contains(t, out, "global info")
	assert.Contains(t, out, "global debug")
	assert.NotContains(t, out, "suppressed warn")
	assert.Contains(t, out, "global error")
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelDebug)

	done := logger.Trace("Handle")
	done()

	out := buf.String()
	assert.Contains(t, out, "ENTER Handle")
	assert.Contains(t, out, "EXIT  Handle")
}

func TestDefaultAndVerboseConfig(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, LevelInfo, def.Level)
	assert.False(t, def.ShowCaller)

	verbose := VerboseConfig()
	assert.Equal(t, LevelDebug, verbose.Level)
	assert.True(t, verbose.ShowCaller)
}

func BenchmarkLoggerInfo(b *testing.B) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelInfo)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message %d", i)
	}
}
