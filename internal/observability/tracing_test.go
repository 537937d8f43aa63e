package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestStartServiceSpan(t *testing.T) {
	recorder := recordSpans(t)

	t.Run("names the span and tags component and operation", func(t *testing.T) {
		_, span := StartServiceSpan(context.Background(), "ThemeProcessor", "Load", ThemeName("ui"))
		SetSuccess(span)
		span.End()

		ended := recorder.Ended()
		require.NotEmpty(t, ended)
		got := ended[len(ended)-1]
		assert.Equal(t, "ThemeProcessor.Load", got.Name())
		assert.Equal(t, codes.Ok, got.Status().Code)

		attrs := got.Attributes()
		assert.Contains(t, attrs, attribute.String("service.component", "ThemeProcessor"))
		assert.Contains(t, attrs, Operation("Load"))
		assert.Contains(t, attrs, ThemeName("ui"))
	})

	t.Run("errors mark the span", func(t *testing.T) {
		_, span := StartServiceSpan(context.Background(), "PresetManager", "Recompute", AssetID("a1"))
		RecordError(span, errors.New("boom"))
		RecordError(span, nil)
		span.End()

		ended := recorder.Ended()
		got := ended[len(ended)-1]
		assert.Equal(t, codes.Error, got.Status().Code)
		assert.Equal(t, "boom", got.Status().Description)
		assert.Contains(t, got.Attributes(), AssetID("a1"))
	})
}
