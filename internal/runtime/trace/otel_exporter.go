package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "orchestra/runtime"

// OTelExporter re-emits a completed Span through the globally registered
// OTel TracerProvider, letting Collector feed an OTLP pipeline the same way
// the rest of the codebase's HTTP layer does (a no-op provider is installed
// automatically when OTLP isn't configured, so Export is always safe to
// call — spec §4.L "export to an OTLP sink when enabled").
type OTelExporter struct{}

// NewOTelExporter constructs an Exporter backed by otel.Tracer.
func NewOTelExporter() *OTelExporter { return &OTelExporter{} }

func (e *OTelExporter) Export(ctx context.Context, sp *Span) error {
	tracer := otel.Tracer(tracerName)
	_, span := tracer.Start(ctx, string(sp.Kind)+":"+sp.Name,
		oteltrace.WithTimestamp(sp.StartTime),
		oteltrace.WithAttributes(spanAttributes(sp)...),
	)
	if sp.Status == StatusError {
		span.SetStatus(codes.Error, "")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(oteltrace.WithTimestamp(sp.EndTime))
	return nil
}

func spanAttributes(sp *Span) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("orchestra.trace_id", sp.TraceID),
		attribute.String("orchestra.span_id", sp.ID),
		attribute.String("orchestra.kind", string(sp.Kind)),
		attribute.Int("orchestra.depth", sp.Depth),
		attribute.Bool("orchestra.nested", sp.Nested),
	}
	for k, v := range sp.Attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String("orchestra."+k, val))
		case int:
			attrs = append(attrs, attribute.Int("orchestra."+k, val))
		}
	}
	return attrs
}
