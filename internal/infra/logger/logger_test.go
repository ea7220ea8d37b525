package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-console/internal/infra/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "parseLevel(%q)", tt.input)
	}
}

func TestOpenOutputTargets(t *testing.T) {
	w, closer, err := openOutput("stdout")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	assert.NoError(t, closer())

	w, _, err = openOutput("")
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, w)

	w, _, err = openOutput("discard")
	require.NoError(t, err)
	assert.Equal(t, io.Discard, w)
}

func TestOpenOutputInvalidPath(t *testing.T) {
	_, _, err := openOutput("/nonexistent/dir/log.txt")
	assert.Error(t, err)
}

func TestNewJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maestro.log")

	log, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Component("session").Info("session started", "model", "groq")
	log.Debug("hidden at info")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "session started", entry["msg"])
	assert.Equal(t, "maestro", entry["app"])
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "groq", entry["model"])
}

func TestLevelAdjustable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maestro.log")

	log, err := New(config.LoggerConfig{Level: "warn", Format: "text", Output: path})
	require.NoError(t, err)

	log.Info("before")
	log.Level.Set(slog.LevelInfo)
	log.Info("after")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before")
	assert.Contains(t, string(data), "after")
}

func TestNewInvalidOutput(t *testing.T) {
	_, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: "/nonexistent/dir/app.log"})
	assert.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var l *Logger
	assert.NoError(t, l.Close())
}
