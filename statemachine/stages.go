// Package statemachine implements the per-node staged state machine: strict
// stage ordering, a retry-once policy, the SIMULATING-failure repair cycle,
// and stage postcondition checks.
package statemachine

import (
	"time"

	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
)

// stageOrder is the normal (non-repair) stage progression.
var stageOrder = []dag.NodeState{
	dag.StateImplementing,
	dag.StateLinting,
	dag.StateTestbenching,
	dag.StateSimulating,
	dag.StateDistilling,
	dag.StateReflecting,
}

// stageKind maps each non-terminal state to the TaskKind it dispatches.
var stageKind = map[dag.NodeState]contracts.TaskKind{
	dag.StateImplementing: contracts.KindImplementation,
	dag.StateLinting:      contracts.KindLinter,
	dag.StateTestbenching: contracts.KindTestbench,
	dag.StateSimulating:   contracts.KindSimulator,
	dag.StateDistilling:   contracts.KindDistiller,
	dag.StateReflecting:   contracts.KindReflection,
	dag.StateDebugging:    contracts.KindDebug,
}

// defaultDeadlines are the per-stage timeouts.
var defaultDeadlines = map[dag.NodeState]time.Duration{
	dag.StateImplementing: 120 * time.Second,
	dag.StateTestbenching: 120 * time.Second,
	dag.StateSimulating:   300 * time.Second,
	dag.StateLinting:      60 * time.Second,
	dag.StateDistilling:   60 * time.Second,
	dag.StateReflecting:   60 * time.Second,
	dag.StateDebugging:    120 * time.Second,
}

// TaskKindFor returns the TaskKind a stage dispatches, and false if stage
// is not a dispatchable stage (PENDING, DONE, FAILED).
func TaskKindFor(stage dag.NodeState) (contracts.TaskKind, bool) {
	k, ok := stageKind[stage]
	return k, ok
}

// DeadlineFor returns the configured timeout for a stage, falling back to
// 120s for any stage not explicitly listed.
func DeadlineFor(stage dag.NodeState, overrides map[dag.NodeState]time.Duration) time.Duration {
	if overrides != nil {
		if d, ok := overrides[stage]; ok {
			return d
		}
	}
	if d, ok := defaultDeadlines[stage]; ok {
		return d
	}
	return 120 * time.Second
}

// nextNormalStage returns the stage that follows cur in the normal
// progression, and false if cur is the last normal stage or not in it.
func nextNormalStage(cur dag.NodeState) (dag.NodeState, bool) {
	for i, s := range stageOrder {
		if s == cur {
			if i+1 < len(stageOrder) {
				return stageOrder[i+1], true
			}
			return "", false // REFLECTING was last; caller transitions to DONE
		}
	}
	return "", false
}

// firstStage is the stage a PENDING node enters.
func firstStage() dag.NodeState { return stageOrder[0] }

// StageOrder returns a copy of the normal (non-repair) stage progression,
// for callers outside this package that need to walk it (restart
// recovery).
func StageOrder() []dag.NodeState {
	out := make([]dag.NodeState, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// FirstStage is the stage a PENDING node enters.
func FirstStage() dag.NodeState { return firstStage() }
