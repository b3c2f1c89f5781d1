package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"sales-insight-workers/internal/common/config"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	requestCounter otelmetric.Int64Counter
	requestLatency otelmetric.Float64Histogram
}

// New sets up the global tracer and meter providers. A tracing exporter
// that cannot be built leaves spans unexported rather than failing startup.
func New(ctx context.Context, serviceName string, tracing config.TracingConfig) *Observability {
	tp, err := newTracerProvider(ctx, serviceName, tracing)
	if err != nil {
		log.Printf("Failed to create %s span exporter: %v", tracing.Exporter, err)
		tp = sdktrace.NewTracerProvider()
	}
	otel.SetTracerProvider(tp)

	obs := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	obs.requestCounter, _ = meter.Int64Counter(
		"pipeline.requests",
		otelmetric.WithDescription("Questions answered by route"),
	)
	obs.requestLatency, _ = meter.Float64Histogram(
		"pipeline.duration",
		otelmetric.WithDescription("End-to-end question latency"),
		otelmetric.WithUnit("ms"),
	)

	obs.meterProvider = provider
	obs.meter = meter
	return obs
}

// NewForTracerProvider returns an Observability that opens its spans on tp
// and records no metrics.
func NewForTracerProvider(serviceName string, tp trace.TracerProvider) *Observability {
	return &Observability{tracer: tp.Tracer(serviceName)}
}

// Noop returns an Observability whose spans and instruments do nothing.
func Noop() *Observability {
	return &Observability{tracer: otel.Tracer("noop")}
}

// StartSpan opens a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("sales-insight-workers")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordRequest records one answered question and its latency.
func (o *Observability) RecordRequest(ctx context.Context, route string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("route", route))
	if o.requestCounter != nil {
		o.requestCounter.Add(ctx, 1, attrs)
	}
	if o.requestLatency != nil {
		o.requestLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
