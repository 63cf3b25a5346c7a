// Package telemetry wires OpenTelemetry tracing for the benchmark.
//
// Tracing is off unless OTEL_ENABLED=true. When enabled, Init installs a
// global TracerProvider exporting over OTLP, and every sweep, configuration
// and accumulator run becomes a span obtained through otel.Tracer or Tracer.
//
// Environment Variables:
//
//	OTEL_ENABLED                    - Enable/disable tracing (default: false)
//	OTEL_SERVICE_NAME               - Service name (default: histobench)
//	OTEL_SERVICE_VERSION            - Service version (default: build version)
//	OTEL_EXPORTER_OTLP_ENDPOINT     - OTLP collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL     - Protocol: grpc or http/protobuf (default: grpc)
//	OTEL_EXPORTER_OTLP_HEADERS      - Headers for authentication
//	OTEL_EXPORTER_OTLP_INSECURE     - Use insecure connection (default: false)
//	OTEL_TRACES_SAMPLER             - Sampler type (default: always_on)
//	OTEL_TRACES_SAMPLER_ARG         - Sampler argument (e.g., ratio)
//	OTEL_RESOURCE_ATTRIBUTES        - Additional resource attributes
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by the benchmark packages.
const InstrumentationName = "github.com/histobench"

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Option adjusts Init.
type Option func(*Config)

// WithServiceVersion sets the service version unless OTEL_SERVICE_VERSION
// already did.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		if c.ServiceVersion == "" {
			c.ServiceVersion = version
		}
	}
}

// Init installs the global TracerProvider. When tracing is disabled it
// returns a no-op shutdown and leaves the default no-op provider in place.
func Init(ctx context.Context, opts ...Option) (ShutdownFunc, error) {
	cfg := *loadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, &cfg)
	if err != nil {
		return noopShutdown, err
	}
	exporter, err := createExporter(ctx, &cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(createSampler(&cfg)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer returns the benchmark tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the current telemetry configuration.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
