// Package telemetry sets up distributed tracing for the discovery service.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultServiceName = "scene-discovery"
	setupTimeout       = 5 * time.Second
	exportTimeout      = 3 * time.Second
)

// ShutdownFunc flushes buffered spans. Call it before the process exits.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global trace provider and propagators. Tracing stays off
// unless OTEL_EXPORTER_OTLP_ENDPOINT names a collector; an unreachable or
// misconfigured exporter is not fatal, the service runs untraced. A discovery
// pass spans the suggestion call, the catalog fan-out and the store writes,
// so exports are batched rather than sent per span.
func Init(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	endpoint := collectorEndpoint()
	if endpoint == "" {
		return noopShutdown, nil
	}
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	exporter, err := otlptracehttp.New(setupCtx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(exportTimeout),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return noopShutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// collectorEndpoint returns the OTLP endpoint as host:port. The exporter
// rejects a scheme prefix, so one pasted from a collector URL is stripped.
func collectorEndpoint() string {
	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}
