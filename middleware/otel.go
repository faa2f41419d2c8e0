package middleware

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

const instrumentationName = "github.com/mnehpets/rpcserve"

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider sets the tracer provider. The default is the global one.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider. The default is the global one.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the service.name attribute on spans and metrics.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipMethods disables telemetry for the named methods.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel returns middleware that starts a server span named "jsonrpc.<method>"
// for each call and records request, error and duration metrics.
func OTel(opts ...OTelOption) jsonrpc.Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "rpcserve",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(instrumentationName)
	meter := cfg.meterProvider.Meter(instrumentationName)

	requestCounter, _ := meter.Int64Counter(
		"rpc.server.requests",
		metric.WithDescription("Total number of JSON-RPC calls"),
		metric.WithUnit("{request}"),
	)
	errorCounter, _ := meter.Int64Counter(
		"rpc.server.errors",
		metric.WithDescription("Total number of JSON-RPC calls answered with an error"),
		metric.WithUnit("{error}"),
	)
	requestDuration, _ := meter.Float64Histogram(
		"rpc.server.duration",
		metric.WithDescription("Duration of JSON-RPC calls"),
		metric.WithUnit("ms"),
	)

	return func(next jsonrpc.Invoker) jsonrpc.Invoker {
		return func(ctx context.Context, call *jsonrpc.Call) (interface{}, error) {
			if cfg.skipMethods[call.Method] {
				return next(ctx, call)
			}

			attrs := []attribute.KeyValue{
				attribute.String("rpc.system", "jsonrpc"),
				attribute.String("rpc.method", call.Method),
				attribute.String("service.name", cfg.serviceName),
			}

			ctx, span := tracer.Start(ctx, "jsonrpc."+call.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
				trace.WithAttributes(attribute.String("rpc.jsonrpc.request_id", fmt.Sprint(call.ID))),
			)
			defer span.End()

			if reqID := RequestIDFromContext(ctx); reqID != "" {
				span.SetAttributes(attribute.String("request_id", reqID))
			}

			start := time.Now()
			requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

			result, err := next(ctx, call)

			requestDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(attrs...))

			if err != nil {
				code := jsonrpc.AsFault(err).Code
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", code))
				errorCounter.Add(ctx, 1, metric.WithAttributes(
					append(attrs, attribute.Int("rpc.jsonrpc.error_code", code))...,
				))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return result, err
		}
	}
}
