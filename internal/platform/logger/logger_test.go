package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riyakasaudhan20/sync-clip/internal/config"
)

func testConfig(level, format string) config.Config {
	return config.Config{
		Service: &config.ServiceConfig{Name: "sync-clip", Env: "test", Add: ":8080"},
		Logger:  &config.LoggerConfig{Level: level, Format: format},
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, testConfig("INFO", "json"))

	log.Debug("hidden")
	log.Info("visible", "device_id", "d1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Equal(t, "sync-clip", rec["service"])
	assert.Equal(t, "test", rec["env"])
	assert.Equal(t, "d1", rec["device_id"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, testConfig("debug", "TEXT"))

	log.Debug("hello")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "service=sync-clip")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
