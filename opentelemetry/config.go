package opentelemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/get-eventually/go-eventually-snapshot/opentelemetry"

// BackendAttribute names the blob storage backing the instrumented snapshot.Store.
const BackendAttribute attribute.Key = "snapshot.backend"

type config struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	backend        string
}

func (c config) meter() metric.Meter {
	return c.meterProvider.Meter(instrumentationName)
}

func (c config) tracer() trace.Tracer {
	return c.tracerProvider.Tracer(instrumentationName)
}

// commonAttributes returns the attributes attached to every span and measurement.
func (c config) commonAttributes() []attribute.KeyValue {
	if c.backend == "" {
		return nil
	}

	return []attribute.KeyValue{BackendAttribute.String(c.backend)}
}

// Option specifies instrumentation configuration options.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithMeterProvider specifies the metric.MeterProvider instance to use for the instrumentation.
// By default, the global metric.MeterProvider is used.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return optionFunc(func(c *config) { c.meterProvider = provider })
}

// WithTracerProvider specifies the trace.TracerProvider instance to use for the instrumentation.
// By default, the global trace.TracerProvider is used.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return optionFunc(func(c *config) { c.tracerProvider = provider })
}

// WithBackend adds the BackendAttribute, with the given name (e.g. "mongodb"),
// to all the recorded spans and metrics.
func WithBackend(name string) Option {
	return optionFunc(func(c *config) { c.backend = name })
}

func newConfig(opts ...Option) config {
	c := config{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}

	for _, opt := range opts {
		opt.apply(&c)
	}

	return c
}
