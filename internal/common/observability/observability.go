package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the otel meter and tracer used around backing
// service calls.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	opCounter      otelmetric.Int64Counter
	opDuration     otelmetric.Float64Histogram
}

type options struct {
	registerer prometheus.Registerer
	processors []sdktrace.SpanProcessor
	global     bool
}

type Option func(*options)

// WithRegisterer sets the prometheus registry the exporter registers with.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanProcessor attaches a span processor, e.g. a tracetest recorder.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) { o.processors = append(o.processors, p) }
}

// AsGlobal installs the providers as the otel globals.
func AsGlobal() Option {
	return func(o *options) { o.global = true }
}

// New builds a meter provider exporting through prometheus and a tracer
// provider.
func New(serviceName string, opts ...Option) (*Observability, error) {
	cfg := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&cfg)
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(cfg.registerer))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	for _, p := range cfg.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	if cfg.global {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
	}

	meter := mp.Meter(serviceName)
	opCounter, err := meter.Int64Counter(
		"backend.operations",
		otelmetric.WithDescription("Number of backing service operations"),
	)
	if err != nil {
		return nil, err
	}
	opDuration, err := meter.Float64Histogram(
		"backend.operation.duration",
		otelmetric.WithDescription("Backing service operation duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
		opCounter:      opCounter,
		opDuration:     opDuration,
	}, nil
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	meter := noop.NewMeterProvider().Meter("noop")
	counter, _ := meter.Int64Counter("noop")
	hist, _ := meter.Float64Histogram("noop")
	return &Observability{
		tracer:     tracenoop.NewTracerProvider().Tracer("noop"),
		opCounter:  counter,
		opDuration: hist,
	}
}

func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

// RecordOperation counts one backend call and its latency.
func (o *Observability) RecordOperation(ctx context.Context, component, operation, status string, d time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("component", component),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	o.opCounter.Add(ctx, 1, attrs)
	o.opDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
