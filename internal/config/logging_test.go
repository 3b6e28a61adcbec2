package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("chatty")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Log{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("loan created", "book_id", 3)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"book_id":3`)

	buf.Reset()
	logger, err = NewLogger(Log{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)
	logger.Warn("conflict", "book_id", 3)
	assert.Contains(t, buf.String(), "book_id=3")
}
