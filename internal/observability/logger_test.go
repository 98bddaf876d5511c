package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogOptions{Level: "debug", Format: "json", Writer: &buf})

	ctx := WithRunID(context.Background(), "run-123")
	logger.DebugContext(ctx, "analyzed", "path", "main.go")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "repoaudit", record["service"])
	assert.Equal(t, "run-123", record["run_id"])
	assert.Equal(t, "main.go", record["path"])
	assert.Equal(t, "analyzed", record["msg"])
}

func TestNewLogger_NoRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogOptions{Format: "json", Writer: &buf})
	logger.Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, ok := record["run_id"]
	assert.False(t, ok)
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogOptions{Level: "warn", Writer: &buf})
	logger.Info("quiet")
	assert.Empty(t, buf.String())
	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "service=repoaudit")
}

func TestRunHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogOptions{Format: "json", Writer: &buf}).WithGroup("cache")
	logger.Info("miss", "fingerprint", "abc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "repoaudit", record["service"])
	group, ok := record["cache"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc", group["fingerprint"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
