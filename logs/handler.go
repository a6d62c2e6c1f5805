package logs

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Handler tags records with the log span and, when present, the otel trace of ctx.
type Handler struct {
	slog.Handler
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if span := SpanFrom(ctx); span != "" {
		record.Add("logs.span", span)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.Add(
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
		)
	}
	return h.Handler.Handle(ctx, record)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithAttrs(attrs),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithGroup(name),
	}
}
