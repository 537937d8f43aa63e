package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line), raw)
		lines = append(lines, line)
	}
	return lines
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger(t *testing.T) {
	t.Run("filters below the minimum level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerWithWriter(&buf, "test", LevelWarn, false)

		l.Info("hidden")
		l.Warn("shown")

		lines := logLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "shown", lines[0]["message"])
		assert.Equal(t, "warn", lines[0]["level"])
		assert.Equal(t, "test", lines[0]["service"])
	})

	t.Run("fields and errors", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerWithWriter(&buf, "test", LevelDebug, false)

		l.WithField("theme", "ui").
			WithFields(map[string]interface{}{"asset_id": "a1"}).
			WithError(errors.New("boom")).
			Errorf("failed %d times", 2)

		lines := logLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "ui", lines[0]["theme"])
		assert.Equal(t, "a1", lines[0]["asset_id"])
		assert.Equal(t, "boom", lines[0]["error"])
		assert.Equal(t, "failed 2 times", lines[0]["message"])
	})

	t.Run("attaches trace ids from the context", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerWithWriter(&buf, "test", LevelInfo, false)

		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x01},
			SpanID:  trace.SpanID{0x02},
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		l.WithContext(ctx).Info("traced")
		l.WithContext(context.Background()).Info("untraced")

		lines := logLines(t, &buf)
		require.Len(t, lines, 2)
		assert.Equal(t, sc.TraceID().String(), lines[0]["trace_id"])
		assert.Equal(t, sc.SpanID().String(), lines[0]["span_id"])
		assert.NotContains(t, lines[1], "trace_id")
	})

	t.Run("nop discards", func(t *testing.T) {
		assert.NotPanics(t, func() { Nop().WithField("k", "v").Error("nothing") })
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "test", LevelDebug, false)

	handler := RequestLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/themes", nil))

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "request", lines[0]["message"])
	assert.Equal(t, "GET", lines[0]["method"])
	assert.EqualValues(t, http.StatusTeapot, lines[0]["status"])
	assert.EqualValues(t, 5, lines[0]["bytes"])
}

func TestNilEngineMetrics(t *testing.T) {
	var m *EngineMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordThemeLoad(ctx, "ui", "db", true)
		m.RecordCompile(ctx, "ui", time.Millisecond)
		m.RecordFragmentUpdate(ctx, "inject")
		m.RecordResolutionGap(ctx, "preset")
		m.AddWebSocketClients(ctx, 1)
	})
}
