package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/stockengine/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.Emit(), true
		}
	}
	return "", false
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	orderID := uuid.New()
	_, span := telemetry.StartServiceSpan(context.Background(), "order_shipping", "ship_order",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "order_shipping.ship_order", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())

	value, ok := attrValue(spans[0], telemetry.SpanAttrOrderID)
	require.True(t, ok)
	assert.Equal(t, orderID.String(), value)
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "stock_import.row")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRowNumber, 7,
		telemetry.SpanAttrImportID, "import-1",
		42, "ignored",
		"dangling",
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Len(t, spans[0].Attributes(), 2)

	value, ok := attrValue(spans[0], telemetry.SpanAttrRowNumber)
	require.True(t, ok)
	assert.Equal(t, "7", value)
}

func TestRecordErrorAndSetOK(t *testing.T) {
	sr := setupTestTracer(t)
	ctx := context.Background()

	_, failed := telemetry.StartSpan(ctx, "failed")
	telemetry.RecordError(failed, errors.New("not enough stock"))
	failed.End()

	_, ok := telemetry.StartSpan(ctx, "ok")
	telemetry.SetOK(ok)
	ok.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "not enough stock", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestRecordError_NilSafe(t *testing.T) {
	telemetry.RecordError(nil, errors.New("x"))
	telemetry.SetOK(nil)
	telemetry.SetAttributes(nil, "k", "v")
	telemetry.AddEvent(nil, "event")

	_, span := telemetry.StartSpan(context.Background(), "nil-error")
	telemetry.RecordError(span, nil)
	span.End()
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "retry")
	telemetry.AddEvent(span, "transaction_retry", telemetry.SpanAttrAttempt, 2)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "transaction_retry", spans[0].Events()[0].Name)
}

func TestTraceAndSpanIDs(t *testing.T) {
	setupTestTracer(t)

	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))

	ctx, span := telemetry.StartSpan(context.Background(), "ids")
	defer span.End()

	assert.Len(t, telemetry.GetTraceID(ctx), 32)
	assert.Len(t, telemetry.GetSpanID(ctx), 16)
}
