package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Production(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "warn")
	logger.Info("hidden")
	logger.Warn("seat release failed", "workshop_id", "ws-1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "seat release failed", record["msg"])
	assert.Equal(t, "therapyhub", record["service"])
	assert.Equal(t, "ws-1", record["workshop_id"])
}

func TestNewLogger_Development(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "development", "").Debug("not shown")
	assert.Empty(t, buf.String())

	newLogger(&buf, "development", "debug").Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
