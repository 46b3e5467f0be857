package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetOutput routes the logger into a fresh buffer and restores stderr
// output after the test.
func resetOutput(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()

	buf := new(bytes.Buffer)
	InitWithWriter(buf, level, format)
	t.Cleanup(func() { InitWithWriter(new(bytes.Buffer), "INFO", "text") })
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf := resetOutput(t, "DEBUG", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("WarnLevelHidesLowerLevels", func(t *testing.T) {
		buf := resetOutput(t, "WARN", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})

	t.Run("InvalidLevelIsIgnored", func(t *testing.T) {
		buf := resetOutput(t, "INFO", "text")

		SetLevel("LOUD")
		Info("still info")
		assert.Contains(t, buf.String(), "still info")
	})
}

func TestTextFormat(t *testing.T) {
	buf := resetOutput(t, "INFO", "text")

	Info("session accepted", "remote", "127.0.0.1:50000", "count", 3)

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "session accepted")
	assert.Contains(t, out, "remote=127.0.0.1:50000")
	assert.Contains(t, out, "count=3")
}

func TestJSONFormat(t *testing.T) {
	buf := resetOutput(t, "INFO", "json")

	Info("session accepted", "remote", "127.0.0.1:50000")

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "session accepted", record["msg"])
	assert.Equal(t, "127.0.0.1:50000", record["remote"])
	assert.Equal(t, "INFO", record["level"])
}

func TestSetFormatRejectsUnknown(t *testing.T) {
	buf := resetOutput(t, "INFO", "text")

	SetFormat("xml")
	Info("still text", "key", "value")
	assert.Contains(t, buf.String(), "key=value")
}
