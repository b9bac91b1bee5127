package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestWithContext_AddsRequestScopedFields(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(New(&buf, "info"))
	t.Cleanup(func() { SetDefault(prev) })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, ServiceKey, "waitlist")
	InfoContext(ctx, "participant admitted", "position", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "waitlist", line["service"])
	assert.Equal(t, float64(3), line["position"])
	assert.NotContains(t, line, "user_id")
}

func TestSetDefault_ConcurrentWithLogging(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetDefault(New(io.Discard, "info"))
		}()
		go func() {
			defer wg.Done()
			InfoContext(context.Background(), "concurrent write")
			Debug("concurrent debug")
		}()
	}
	wg.Wait()
	assert.NotNil(t, Default())
}
