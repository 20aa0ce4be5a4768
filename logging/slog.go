package logging

import (
	"context"
	"log/slog"
	"os"
)

// SlogLogger adapts the standard library's structured logger to Logger.
type SlogLogger struct {
	base      *slog.Logger
	component string
}

// NewSlogLogger returns a production Logger writing JSON lines to os.Stderr.
func NewSlogLogger() *SlogLogger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &SlogLogger{base: slog.New(h)}
}

func (l *SlogLogger) WithComponent(name string) Logger {
	return &SlogLogger{base: l.base, component: name}
}

func (l *SlogLogger) attrs(fields map[string]interface{}) []any {
	out := make([]any, 0, len(fields)*2+2)
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func (l *SlogLogger) Info(msg string, fields map[string]interface{})  { l.base.Info(msg, l.attrs(fields)...) }
func (l *SlogLogger) Error(msg string, fields map[string]interface{}) { l.base.Error(msg, l.attrs(fields)...) }
func (l *SlogLogger) Warn(msg string, fields map[string]interface{})  { l.base.Warn(msg, l.attrs(fields)...) }
func (l *SlogLogger) Debug(msg string, fields map[string]interface{}) { l.base.Debug(msg, l.attrs(fields)...) }

func (l *SlogLogger) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.base.InfoContext(ctx, msg, l.attrs(fields)...)
}
func (l *SlogLogger) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.base.ErrorContext(ctx, msg, l.attrs(fields)...)
}
func (l *SlogLogger) WarnContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.base.WarnContext(ctx, msg, l.attrs(fields)...)
}
func (l *SlogLogger) DebugContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.base.DebugContext(ctx, msg, l.attrs(fields)...)
}

var _ ComponentLogger = (*SlogLogger)(nil)
