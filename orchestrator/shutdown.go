package orchestrator

import (
	"context"
	"errors"
)

// Shutdown closes the broker connection and flushes telemetry, aggregating
// any errors from either step. It does not touch Task Memory: on restart,
// whatever was last durably recorded is exactly what Recover will rebuild
// the graph from.
func (l *Loop) Shutdown(ctx context.Context) error {
	var errs []error
	if err := l.deps.Broker.Close(); err != nil {
		errs = append(errs, err)
	}
	if shutter, ok := l.deps.Emitter.(interface{ Shutdown(context.Context) error }); ok {
		if err := shutter.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
