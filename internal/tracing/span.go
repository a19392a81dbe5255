package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartQuerySpan starts a client span for one find against collection.
func StartQuerySpan(ctx context.Context, tracer trace.Tracer, collection string, index int) (context.Context, trace.Span) {
	name := "find"
	if collection != "" {
		name = "find " + collection
	}
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "mongodb"),
		attribute.String("db.operation.name", "find"),
		attribute.Int("mongo_bench.query_index", index),
	)
	if collection != "" {
		span.SetAttributes(attribute.String("db.collection.name", collection))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
