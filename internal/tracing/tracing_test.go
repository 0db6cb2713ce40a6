package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"whatsrelay/internal/models"
)

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()

	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.NotEqual(t, a, b)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Zero(t, Duration(ctx))

	start := time.Now().Add(-time.Second)
	ctx = WithRequestID(ctx, "req_1")
	ctx = WithTraceID(ctx, "trace_1")
	ctx = WithStartTime(ctx, start)

	assert.Equal(t, "req_1", GetRequestID(ctx))
	assert.Equal(t, "trace_1", GetTraceID(ctx))
	assert.Equal(t, start, GetStartTime(ctx))
	assert.GreaterOrEqual(t, Duration(ctx), time.Second)
}

func TestTracingManager_DisabledIsNoop(t *testing.T) {
	logger := logrus.New()
	tm := NewTracingManager(models.TracingConfig{Enabled: false}, "test", logger)

	require.NoError(t, tm.Initialize(context.Background()))
	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestTracingManager_StdoutExporter(t *testing.T) {
	logger := logrus.New()
	tm := NewTracingManager(models.TracingConfig{
		Enabled:     true,
		ServiceName: "whatsrelay-test",
		SampleRate:  1,
		UseStdout:   true,
	}, "test", logger)

	require.NoError(t, tm.Initialize(context.Background()))
	t.Cleanup(func() { _ = tm.Shutdown(context.Background()) })

	ctx, span := WithOtelTracing(context.Background(), "unit")
	AddSpanAttributes(ctx, attribute.String("k", "v"))
	SetSpanStatus(ctx, codes.Ok, "")
	span.End()

	assert.NotEmpty(t, GetTraceID(ctx))
}

func TestSpanHelpers_WithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop", attribute.Int("n", 1))
	defer span.End()

	assert.NotPanics(t, func() {
		AddSpanAttributes(ctx, attribute.Bool("x", true))
		RecordError(ctx, assert.AnError)
		SetSpanStatus(ctx, codes.Error, "bad")
	})
}
