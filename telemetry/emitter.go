// Package telemetry provides an explicit, dependency-injected event
// emitter for spans and counters. Components take an Emitter through their
// constructor; nothing in this module reaches for a process-wide tracer or
// meter singleton.
package telemetry

import "context"

// Span is a started trace span; callers must call End.
type Span interface {
	End()
	SetAttribute(key string, value any)
	RecordError(err error)

	// IDs returns the span's trace and span identifiers in their hex
	// wire form, for callers that need to stamp them into an outbound
	// message rather than rely on context propagation. Both are empty
	// for a no-op span.
	IDs() (traceID string, spanID string)
}

// Emitter is the explicit observability sink passed into every component
// that needs to report spans or counters.
type Emitter interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	AddCounter(name string, delta int64, attrs map[string]string)
}

// noopSpan and NoOpEmitter let components be constructed and tested
// without a real telemetry backend.
type noopSpan struct{}

func (noopSpan) End()                     {}
func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) IDs() (string, string)    { return "", "" }

type NoOpEmitter struct{}

func (NoOpEmitter) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}
func (NoOpEmitter) AddCounter(name string, delta int64, attrs map[string]string) {}

var _ Emitter = NoOpEmitter{}
