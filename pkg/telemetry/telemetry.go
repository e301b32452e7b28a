// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package telemetry installs the tracer provider and propagators the scopes
// of the matchmaker report to.
package telemetry

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Options struct {
	ServiceName string
	// ZipkinURL is the collector endpoint. Empty keeps spans in process.
	ZipkinURL  string
	SampleRate float64
}

// Setup installs a global tracer provider and the b3 and w3c propagators. The
// returned function flushes and stops the provider.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.SampleRate < 0 || opts.SampleRate > 1 {
		return nil, eris.Errorf("trace sample rate must be between 0 and 1, got %f", opts.SampleRate)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(opts.ServiceName),
	))
	if err != nil {
		return nil, eris.Wrap(err, "failed to build trace resource")
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRate))),
	}
	if opts.ZipkinURL != "" {
		exporter, err := zipkin.New(opts.ZipkinURL)
		if err != nil {
			return nil, eris.Wrap(err, "failed to create zipkin exporter")
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)),
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}, nil
}
