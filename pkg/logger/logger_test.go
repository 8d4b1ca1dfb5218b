package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: "debug", Format: "json"})

	mu.Lock()
	prev := globalLogger
	globalLogger = l
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		globalLogger = prev
		mu.Unlock()
	})

	ctx := ContextWithTrace(context.Background(), "trace-1", "span-1", "req-1")
	Info(ctx, "priced", "instrument_id", "SPOT-C-100")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "priced", entry["msg"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "span-1", entry["span_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "SPOT-C-100", entry["instrument_id"])

	assert.Equal(t, "trace-1", TraceID(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, TraceID(context.Background()))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: "warn", Format: "text"})
	l.Info("dropped")
	assert.Zero(t, buf.Len())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}
