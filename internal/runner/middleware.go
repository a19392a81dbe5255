package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/mongo-bench/internal/tracing"
	"github.com/torosent/mongo-bench/internal/workload"
)

// timeoutBackend bounds each Execute call.
type timeoutBackend struct {
	inner   Backend
	timeout time.Duration
}

// WithTimeout wraps a Backend so every query runs under its own deadline.
func WithTimeout(b Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		return b
	}
	return &timeoutBackend{inner: b, timeout: timeout}
}

func (t *timeoutBackend) Execute(ctx context.Context, q workload.Query) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Execute(ctx, q)
}

// tracingBackend opens one client span per query.
type tracingBackend struct {
	inner      Backend
	tracer     trace.Tracer
	collection string
}

// WithTracing wraps a Backend with OpenTelemetry spans.
func WithTracing(b Backend, tracer trace.Tracer, collection string) Backend {
	if tracer == nil {
		return b
	}
	return &tracingBackend{inner: b, tracer: tracer, collection: collection}
}

func (t *tracingBackend) Execute(ctx context.Context, q workload.Query) error {
	ctx, span := tracing.StartQuerySpan(ctx, t.tracer, t.collection, q.Index)
	err := t.inner.Execute(ctx, q)
	var attrs []attribute.KeyValue
	if err != nil {
		attrs = append(attrs, attribute.String("mongo_bench.error_class", Classify(err)))
	}
	tracing.EndSpan(span, err, attrs...)
	return err
}
