package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn, FormatText)

	logger.Info("hidden")
	logger.Warn("shown", "stage", "review")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "stage=review")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug, FormatJSON).With("run_id", "abc")

	logger.Debug("stage finished", "round", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage finished", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "abc", entry["run_id"])
	assert.Equal(t, float64(2), entry["round"])
}

func TestNewFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, closer, err := NewFile(dir, LevelInfo)
	require.NoError(t, err)

	logger.Info("written to disk")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(filepath.Join(dir, "songsmith.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"written to disk"`)
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.NotPanics(t, func() { logger.Error("discarded") })
}

func TestValidLevels(t *testing.T) {
	assert.Equal(t, []string{"DEBUG", "INFO", "WARN", "ERROR"}, ValidLevels())
}
