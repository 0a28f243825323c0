// Package tracing bootstraps an OpenTelemetry tracer provider and carries
// span context across job-queue boundaries, standing in for the
// custom-properties propagation described in the job queue contract.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sourcewatch/worker"

// Init wires a global TracerProvider. When endpoint is empty, tracing runs
// with the SDK's no-op-adjacent default provider (spans are created but never
// exported) so callers don't need to special-case "tracing disabled".
func Init(ctx context.Context, serviceName, endpoint string) (shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, err
	}

	if endpoint == "" {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the package-wide tracer. The queue and worker packages only
// propagate span context through Inject and Extract; they start no spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Inject serializes the span context carried by ctx into a plain string map,
// the equivalent of a job's custom-properties field.
func Inject(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return map[string]string(carrier)
}

// Extract rebuilds a context carrying the remote span described by carrier,
// so a consumed job can parent its root span under the enqueuing span.
func Extract(ctx context.Context, carrier map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}
