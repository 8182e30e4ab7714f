// Package opentelemetry provides OpenTelemetry instrumentation, in the form
// of metrics and traces, for Event Stores and snapshot Writers.
package opentelemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/get-eventually/go-eventually-snapshot/opentelemetry"

// config holds the providers shared by InstrumentedEventStore and InstrumentedWriter.
type config struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func (c config) meter() metric.Meter { return c.meterProvider.Meter(instrumentationName) }

func (c config) tracer() trace.Tracer { return c.tracerProvider.Tracer(instrumentationName) }

// Option configures NewInstrumentedEventStore and NewInstrumentedWriter.
type Option func(*config)

// WithMeterProvider sets the metric.MeterProvider used to register the
// duration histograms and the snapshot appends counter.
// The global provider is used otherwise.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) { c.meterProvider = provider }
}

// WithTracerProvider sets the trace.TracerProvider used to start the
// Event Store and snapshot Writer spans.
// The global provider is used otherwise.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = provider }
}

func newConfig(opts ...Option) config {
	c := config{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c
}
