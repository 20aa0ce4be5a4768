package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fpgaforge/orchestrator/dag"
)

func TestApplyTimeout_FirstOccurrenceIsTransient(t *testing.T) {
	m := New()
	_, n := newTestGraph(t)
	n.State = dag.StateTestbenching

	failed := m.ApplyTimeout(n, dag.StateTestbenching)
	assert.False(t, failed)
	assert.Equal(t, dag.StateTestbenching, n.State)
	assert.Equal(t, 1, n.Attempts[dag.StateTestbenching])
	assert.Nil(t, n.InFlight)
}

func TestApplyTimeout_SecondOccurrenceIsTerminal(t *testing.T) {
	m := New()
	_, n := newTestGraph(t)
	n.State = dag.StateTestbenching
	n.Attempts[dag.StateTestbenching] = 1 // already retried once

	failed := m.ApplyTimeout(n, dag.StateTestbenching)
	assert.True(t, failed)
	assert.Equal(t, dag.StateFailed, n.State)
	assert.Equal(t, dag.StateTestbenching, n.FailedStage)
	assert.Equal(t, "timeout", n.FailureReason)
}

func TestApplyTimeout_OnSimulating_EntersRepairCycleOnSecondOccurrence(t *testing.T) {
	m := New()
	_, n := newTestGraph(t)
	n.State = dag.StateSimulating
	n.Attempts[dag.StateSimulating] = 1

	failed := m.ApplyTimeout(n, dag.StateSimulating)
	assert.False(t, failed)
	assert.Equal(t, dag.StateDistilling, n.State)
	assert.True(t, n.RepairActive)
}
