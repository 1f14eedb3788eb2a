// Package telemetry wires OpenTelemetry tracing and log export.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	// OTLP gRPC endpoint, host:port or a URL. Empty disables export.
	Endpoint    string
	ServiceName string
}

type Telemetry struct {
	Logger *slog.Logger

	shutdown []func(context.Context) error
}

// Setup installs global tracer and propagator and returns a logger that
// writes to base and, when exporting, to the OTLP log pipeline as well.
func Setup(ctx context.Context, cfg Config, base slog.Handler) (*Telemetry, error) {
	t := &Telemetry{Logger: slog.New(base)}
	if cfg.Endpoint == "" {
		return t, nil
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	traceExp, err := otlptracegrpc.New(ctx, traceEndpoint(cfg.Endpoint)...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	t.shutdown = append(t.shutdown, tp.Shutdown)

	logExp, err := otlploggrpc.New(ctx, logEndpoint(cfg.Endpoint)...)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	t.shutdown = append(t.shutdown, lp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	exported := otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp))
	t.Logger = slog.New(tee{base, exported})
	return t, nil
}

// Shutdown flushes and stops the providers in reverse order of creation.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, t.shutdown[i](ctx))
	}
	t.shutdown = nil
	return errors.Join(errs...)
}

func isURL(ep string) bool {
	return strings.Contains(ep, "://")
}

func traceEndpoint(ep string) []otlptracegrpc.Option {
	if isURL(ep) {
		return []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(ep)}
	}
	return []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(ep), otlptracegrpc.WithInsecure()}
}

func logEndpoint(ep string) []otlploggrpc.Option {
	if isURL(ep) {
		return []otlploggrpc.Option{otlploggrpc.WithEndpointURL(ep)}
	}
	return []otlploggrpc.Option{otlploggrpc.WithEndpoint(ep), otlploggrpc.WithInsecure()}
}
