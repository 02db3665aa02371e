package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "processes", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, float64(3), entry["processes"])
}

func TestFromContext_ContextLoggerKeepsFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), New(&buf, "info", "json").With("request_id", "req-1"))
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-1")

	WithFields(ctx, "run_id", "r-1", "collection", "cp26-p001").Info("sync committed")

	assert.Equal(t, 1, strings.Count(buf.String(), `"request_id"`))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "r-1", entry["run_id"])
	assert.Equal(t, "cp26-p001", entry["collection"])
}

func TestFromContext_FallbackTagsRequestIDOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-2")

	// The request middleware stores the fallback logger; later lookups
	// must not tag it again.
	ctx = NewContext(ctx, FromContext(ctx).With("ip", "10.0.0.1"))
	FromContext(ctx).Info("import received")

	assert.Equal(t, 1, strings.Count(buf.String(), `"request_id"`))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-2", entry["request_id"])
	assert.Equal(t, "10.0.0.1", entry["ip"])
}

func TestFromContext_DefaultLogger(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
