package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, Configure("info", "text"))
	t.Cleanup(func() {
		_ = Configure("info", "text")
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	reset(t)

	assert.False(t, IsVerbose())
	SetVerbose(true)
	assert.True(t, IsVerbose())
	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_OnlyWhenVerbose(t *testing.T) {
	buf := reset(t)

	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Debug("test message %s", "arg")
	assert.Equal(t, "[DEBUG] test message arg\n", buf.String())
}

func TestLevels(t *testing.T) {
	buf := reset(t)
	SetLevel(LevelWarn)

	Info("info")
	Warn("warn %s", "w")
	Error("error %s", "e")

	assert.Equal(t, "[WARN] warn w\n[ERROR] error e\n", buf.String())
}

func TestSection(t *testing.T) {
	buf := reset(t)

	Section("Hidden")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Section("Pipeline")
	assert.Equal(t, "\n=== Pipeline ===\n", buf.String())
}

func TestConfigure_JSON(t *testing.T) {
	buf := reset(t)
	require.NoError(t, Configure("debug", "json"))

	Info("indexed %d chunks", 12)
	Section("ignored in json")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "indexed 12 chunks", rec["msg"])
	assert.Contains(t, rec, "time")
}

func TestConfigure_Errors(t *testing.T) {
	reset(t)
	assert.Error(t, Configure("loud", "text"))
	assert.Error(t, Configure("info", "xml"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
