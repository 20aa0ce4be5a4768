// Package logging defines the structured logger interface used throughout
// the orchestrator. Every component that logs takes a Logger as an explicit
// constructor argument rather than reaching for a package-level singleton,
// so tests and alternate hosts can supply their own sink.
package logging

import "context"

// Logger is a structured, field-map based logging interface. Field values
// are logged as key/value pairs; implementations decide the wire format.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentLogger extends Logger so a single base logger can be scoped to
// a named component (e.g. "broker", "orchestrator.loop") without each
// component having to repeat its own name in every field map.
type ComponentLogger interface {
	Logger
	WithComponent(name string) Logger
}
