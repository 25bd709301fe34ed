package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseLogLevel("loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown level "loud"`)
}

func TestNewLogger_FiltersBelowConfiguredLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"

	var buf bytes.Buffer
	logger := newLogger(cfg, &buf)
	logger.Info("tick delivered")
	logger.Warn("transport slow")

	assert.NotContains(t, buf.String(), "tick delivered")
	assert.Contains(t, buf.String(), `msg="transport slow"`)
}
