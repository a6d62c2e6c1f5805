package logs

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/reusee/dscope"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracerProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	dscope.New(new(Module)).Fork(
		func() TracerProvider {
			return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		},
	).Call(func(
		provider TracerProvider,
	) {
		_, span := provider.Tracer("test").Start(context.Background(), "op")
		span.End()
	})
	if spans := recorder.Ended(); len(spans) != 1 || spans[0].Name() != "op" {
		t.Fatalf("got %v", spans)
	}
}

func TestHandlerTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&Handler{
		Handler: slog.NewJSONHandler(&buf, nil),
	})
	provider := sdktrace.NewTracerProvider()
	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside")
	span.End()
	if !strings.Contains(buf.String(), `"trace_id":"`+span.SpanContext().TraceID().String()+`"`) {
		t.Fatalf("got %s", buf.String())
	}

	buf.Reset()
	logger.Info("outside")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("got %s", buf.String())
	}
}
