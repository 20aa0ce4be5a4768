package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpEmitter_SatisfiesInterface(t *testing.T) {
	var e Emitter = NoOpEmitter{}
	ctx, span := e.StartSpan(context.Background(), "test")
	span.SetAttribute("key", "value")
	span.RecordError(nil)
	traceID, spanID := span.IDs()
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
	span.End()
	e.AddCounter("tasks_published", 1, nil)
	assert.NotNil(t, ctx)
}

func TestOTelEmitter_TracksCounters(t *testing.T) {
	e, err := NewOTelEmitter("orchestrator-test")
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	e.AddCounter("tasks_published", 3, map[string]string{"entity_type": "REASONING"})
	e.AddCounter("tasks_published", 2, nil)

	assert.Equal(t, int64(5), e.Counters()["tasks_published"])
}

func TestOTelEmitter_StartSpanReturnsUsableSpan(t *testing.T) {
	e, err := NewOTelEmitter("orchestrator-test")
	require.NoError(t, err)
	defer e.Shutdown(context.Background())

	ctx, span := e.StartSpan(context.Background(), "dispatch")
	span.SetAttribute("node_id", "counter4")
	traceID, spanID := span.IDs()
	assert.NotEmpty(t, traceID)
	assert.NotEmpty(t, spanID)
	span.End()
	assert.NotNil(t, ctx)
}
