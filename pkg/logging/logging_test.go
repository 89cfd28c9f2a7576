package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "json")

	logger.Debug("hidden")
	logger.Info("Trip created", "trip_id", "t1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Trip created", entry["msg"])
	assert.Equal(t, "t1", entry["trip_id"])
}

func TestNew_TextIsUncoloredForNonTerminals(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelDebug, "text").Debug("Relay client connected", "channel", "game_X")

	out := buf.String()
	assert.Contains(t, out, "Relay client connected")
	assert.Contains(t, out, "channel=game_X")
	assert.NotContains(t, out, "\x1b[")
}
