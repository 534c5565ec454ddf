package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry providers set up by
// [InitProvider].
type ProviderConfig struct {
	// ServiceName identifies this service in telemetry backends. Defaults
	// to "parlo" when empty.
	ServiceName string

	// ServiceVersion is the running version of the service, usually
	// injected at build time.
	ServiceVersion string

	// TraceExporter receives finished spans. When nil, spans are still
	// created (so correlation IDs and span-scoped loggers work) but never
	// exported.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider initialises the global OpenTelemetry meter and tracer
// providers. Metrics are exposed through a Prometheus exporter registered on
// the default Prometheus registry, so the standard promhttp handler serves
// them. The returned shutdown function flushes and stops both providers and
// should be called before the process exits.
func InitProvider(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "parlo"
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("observe: create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	var tp *sdktrace.TracerProvider
	if cfg.TraceExporter != nil {
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(cfg.TraceExporter),
		)
	} else {
		tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("observe: shutdown tracer provider: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("observe: shutdown meter provider: %w", err))
		}
		return errors.Join(errs...)
	}
	return shutdown, nil
}
