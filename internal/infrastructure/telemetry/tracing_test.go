package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestStartSpan_RecordsAttributesAndStatus(t *testing.T) {
	recorder := withRecorder(t)
	productID := uuid.New()

	ctx, span := StartSpan(context.Background(), "sale.create",
		WithAttribute("product_id", productID),
		WithAttribute("quantity", 3),
	)
	assert.NotEmpty(t, GetTraceID(ctx))
	assert.NotEmpty(t, GetSpanID(ctx))
	SetAttributes(span, "cost_method", "fifo", 42, "ignored")
	AddEvent(span, "shortfall", "quantity", 1.5)
	SetOK(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "sale.create", s.Name())
	assert.Equal(t, codes.Ok, s.Status().Code)
	assert.Contains(t, s.Attributes(), attribute.String("product_id", productID.String()))
	assert.Contains(t, s.Attributes(), attribute.Int("quantity", 3))
	assert.Contains(t, s.Attributes(), attribute.String("cost_method", "fifo"))
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "shortfall", s.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "purchase_order.unreceive")
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	s := recorder.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}
