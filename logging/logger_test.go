package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	buf.Reset()
	return m
}

func TestLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(Config{Service: "optionlab", Module: "pricing", Level: "info"}, &buf)

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Info("priced", "price", 10.45)
	m := decodeLine(t, &buf)
	assert.Equal(t, "optionlab", m["service"])
	assert.Equal(t, "pricing", m["module"])
	assert.Equal(t, "priced", m["msg"])
	assert.Contains(t, m, "timestamp")

	SetLevel("debug")
	t.Cleanup(func() { SetLevel("info") })
	l.Debug("visible")
	assert.Equal(t, "visible", decodeLine(t, &buf)["msg"])
}

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(Config{Service: "optionlab", Module: "trace"}, &buf)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	l.With("k", "v").InfoContext(ctx, "traced")
	m := decodeLine(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])
	assert.Equal(t, "v", m["k"])

	l.Info("untraced")
	assert.NotContains(t, decodeLine(t, &buf), "trace_id")
}

func TestFileAndStdoutFanOut(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "optionlab.log")
	l := newWithWriter(Config{Service: "optionlab", Module: "io", File: file, MaxSize: 1, Stdout: true, Format: "text"}, &buf)

	l.Warn("both")
	assert.Contains(t, buf.String(), "msg=both")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestPackageHelpers(t *testing.T) {
	l := ReplaceDefault(Config{Service: "optionlab", Module: "helpers", Level: "error"})
	assert.Same(t, l, Default())

	ctx := context.Background()
	assert.NotPanics(t, func() {
		Debug(ctx, "debug")
		Info(ctx, "info")
		Warn(ctx, "warn")
		Error(ctx, "error", "k", 1)
		LogDuration(ctx, "op", "paths", 10)()
	})
}
