// Package tracing holds the span helpers shared by services. No exporter is
// configured here; spans go to whatever provider is registered globally.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// EndSpanErr ends span, marking it failed when *err is non-nil. Call it
// deferred with a pointer to a named error return.
func EndSpanErr(span trace.Span, err *error) {
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
