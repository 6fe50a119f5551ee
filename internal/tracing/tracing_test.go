package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc...xyz", TruncateString("abcdefghijklmnopqrstuvwxyz", 9))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "ja*********om", SafeAttributeValue("candidate.email", "jane@mail.com", 50))
	assert.Equal(t, "ab...yz", SafeAttributeValue("resume.text", "abcdefghijklmnopqrstuvwxyz", 7))
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordError(span, errors.New("boom"), ErrorTypeExtraction)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	var errType string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "error.type" {
			errType = kv.Value.AsString()
		}
	}
	assert.Equal(t, "extraction", errType)
}

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
