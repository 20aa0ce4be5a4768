package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter backs Emitter with a real OpenTelemetry tracer and meter. It
// is built once at startup and handed explicitly to every component that
// needs it — never stored behind a package-level variable.
type OTelEmitter struct {
	tracer trace.Tracer
	tp     *sdktrace.TracerProvider
	meter  metric.Meter
	mp     *sdkmetric.MeterProvider

	mu         sync.Mutex
	counters   map[string]int64
	instrument map[string]metric.Int64Counter
}

// NewOTelEmitter builds an emitter backed by the stdout span and metric
// exporters, appropriate for a standalone binary with no collector assumed
// running. Integrators with a collector can swap in OTLP exporters by
// constructing their own providers and calling NewOTelEmitterWithProvider.
func NewOTelEmitter(serviceName string) (*OTelEmitter, error) {
	spanExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: build stdout span exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(spanExporter))

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: build stdout metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))

	return NewOTelEmitterWithProvider(tp, mp, serviceName), nil
}

func NewOTelEmitterWithProvider(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider, serviceName string) *OTelEmitter {
	return &OTelEmitter{
		tracer:     tp.Tracer(serviceName),
		tp:         tp,
		meter:      mp.Meter(serviceName),
		mp:         mp,
		counters:   map[string]int64{},
		instrument: map[string]metric.Int64Counter{},
	}
}

func (e *OTelEmitter) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := e.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

func (e *OTelEmitter) AddCounter(name string, delta int64, attrs map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters[name] += delta

	inst, ok := e.instrument[name]
	if !ok {
		var err error
		inst, err = e.meter.Int64Counter(name)
		if err != nil {
			return
		}
		e.instrument[name] = inst
	}
	opts := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		opts = append(opts, attribute.String(k, v))
	}
	inst.Add(context.Background(), delta, metric.WithAttributes(opts...))
}

// Counters returns a snapshot of every counter's current value.
func (e *OTelEmitter) Counters() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int64, len(e.counters))
	for k, v := range e.counters {
		out[k] = v
	}
	return out
}

// Shutdown flushes pending spans and metrics and releases both exporters.
func (e *OTelEmitter) Shutdown(ctx context.Context) error {
	traceErr := e.tp.Shutdown(ctx)
	metricErr := e.mp.Shutdown(ctx)
	if traceErr != nil {
		return traceErr
	}
	return metricErr
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

func (s *otelSpan) IDs() (traceID string, spanID string) {
	sc := s.span.SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

var _ Emitter = (*OTelEmitter)(nil)
