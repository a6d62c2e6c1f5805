package logs

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider is the process OpenTelemetry provider. A no-op unless one is installed globally.
type TracerProvider = trace.TracerProvider

func (Module) TracerProvider() TracerProvider {
	return otel.GetTracerProvider()
}
