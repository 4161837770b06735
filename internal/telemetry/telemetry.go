// Package telemetry builds the OpenTelemetry trace and metric providers.
// Without an OTLP endpoint both providers are no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// Providers holds the configured providers.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	sdkTracer *sdktrace.TracerProvider
	sdkMeter  *sdkmetric.MeterProvider
}

// Noop returns providers that record nothing.
func Noop() *Providers {
	return &Providers{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}
}

// Setup creates OTLP/gRPC exporting providers when cfg.OTLPEndpoint is set.
func Setup(ctx context.Context, cfg *types.BridgeConfig) (*Providers, error) {
	if cfg.OTLPEndpoint == "" {
		return Noop(), nil
	}

	traceOpts, metricOpts := endpointOptions(cfg.OTLPEndpoint)
	spanExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spanExp.Shutdown(ctx)
		return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	return newProviders(res, sdktrace.WithBatcher(spanExp), sdkmetric.NewPeriodicReader(metricExp)), nil
}

func newProviders(res *resource.Resource, spans sdktrace.TracerProviderOption, reader sdkmetric.Reader) *Providers {
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res), spans)
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		sdkTracer:      tp,
		sdkMeter:       mp,
	}
}

// endpointOptions accepts either a host:port or a full URL. A bare host:port
// is dialled without TLS, matching a local collector sidecar.
func endpointOptions(endpoint string) ([]otlptracegrpc.Option, []otlpmetricgrpc.Option) {
	if strings.Contains(endpoint, "://") {
		return []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(endpoint)},
			[]otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpointURL(endpoint)}
	}
	return []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure()},
		[]otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure()}
}

// ForceFlush exports everything buffered so far. Lambda handlers call it
// before returning because the sandbox may be frozen afterwards.
func (p *Providers) ForceFlush(ctx context.Context) error {
	var errs []error
	if p.sdkTracer != nil {
		if err := p.sdkTracer.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing spans: %w", err))
		}
	}
	if p.sdkMeter != nil {
		if err := p.sdkMeter.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.sdkTracer != nil {
		if err := p.sdkTracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping tracer provider: %w", err))
		}
	}
	if p.sdkMeter != nil {
		if err := p.sdkMeter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
