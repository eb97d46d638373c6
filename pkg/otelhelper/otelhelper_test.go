package otelhelper_test

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

	"github.com/zapfy/botflow/pkg/otelhelper"
)

func recordingTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()

	return recorder, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
}

func TestStartSpan_AttachesAttributes(t *testing.T) {
	t.Parallel()

	recorder, provider := recordingTracer()
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(context.Background(), tracer, "interpreter.flow_entry",
		attribute.String(otelhelper.FlowIDKey, "flow-1"),
		attribute.String(otelhelper.LeadIDKey, "lead-1"),
	)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	assert.Equal(t, "interpreter.flow_entry", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.FlowIDKey, "flow-1"))
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.LeadIDKey, "lead-1"))
}

func TestSetError_MarksSpanFailed(t *testing.T) {
	t.Parallel()

	recorder, provider := recordingTracer()
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(context.Background(), tracer, "interpreter.message_received")
	otelhelper.SetError(span, errors.New("lease held elsewhere"),
		attribute.String(otelhelper.ExecutionIDKey, "exec-1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	status := spans[0].Status()
	assert.Equal(t, codes.Error, status.Code)
	assert.Equal(t, "lease held elsewhere", status.Description)

	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Attributes, attribute.String(otelhelper.ExecutionIDKey, "exec-1"))
}

func TestNewTracer_InstallsGlobalProvider(t *testing.T) {
	tracer, err := otelhelper.NewTracer(context.Background(), "botflow-test")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "the SDK provider replaces the no-op global")
}
