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
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "": slog.LevelInfo,
		"warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", "text", false)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("skipped file", "path", "sales_broken.xlsx")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "path=sales_broken.xlsx")
}

func TestVerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "error", "json", true)
	require.NoError(t, err)
	log.Debug("loaded", "rows", 30)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.EqualValues(t, 30, rec["rows"])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "info", "xml", false)
	assert.ErrorContains(t, err, "unknown log format")
}
