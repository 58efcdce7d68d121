// Package telemetry sets up a process-wide OpenTelemetry tracer provider
// and exposes Prometheus gauges/counters for the control plane's
// operational state. No ExchangeAdapter call is wrapped in a span.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	tracetype "go.opentelemetry.io/otel/trace"
)

// Tracing holds the process-wide TracerProvider.
type Tracing struct {
	tp *trace.TracerProvider
}

// Setup installs a stdout-exporting TracerProvider as the global
// provider. In development this prints spans to stdout; a production
// deployment would swap stdouttrace for an OTLP exporter without
// touching any call site that uses GetTracer.
func Setup(serviceName string) (*Tracing, error) {
	ctx := context.Background()

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(trace.WithBatcher(exporter), trace.WithResource(res))
	otel.SetTracerProvider(tp)

	return &Tracing{tp: tp}, nil
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.tp.Shutdown(ctx)
}

// GetTracer returns a named tracer from the global provider.
func GetTracer(name string) tracetype.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
