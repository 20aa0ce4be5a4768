package logging

import "context"

// NoOpLogger discards everything. Useful as a safe default and in tests
// that don't care about log output.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})                        {}
func (NoOpLogger) Error(string, map[string]interface{})                       {}
func (NoOpLogger) Warn(string, map[string]interface{})                        {}
func (NoOpLogger) Debug(string, map[string]interface{})                       {}
func (NoOpLogger) InfoContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) ErrorContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) WarnContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) DebugContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) WithComponent(string) Logger                                  { return NoOpLogger{} }

var _ ComponentLogger = NoOpLogger{}
