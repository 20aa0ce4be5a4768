// Package contextbuilder constructs the context block of each outbound
// TaskMessage. Every build function here is pure with respect to its
// inputs (a DAG snapshot, a Design Context, and whatever Task Memory
// lookups it performs): the same node, stage, and stored artifacts always
// yield the same context, independent of wall-clock time or call order.
package contextbuilder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
)

// ArtifactLookup is the read-only slice of Task Memory the builder needs:
// the artifact and log paths recorded for a node's prior stages. Satisfied
// by taskmemory.Store.
type ArtifactLookup interface {
	GetArtifactPath(nodeID string, stage dag.NodeState) (string, bool)
	GetLogPath(nodeID string, stage dag.NodeState) (string, bool)
	ReadLog(nodeID string, stage dag.NodeState) (string, bool)
}

// Builder builds TaskContext payloads. It holds no mutable state beyond the
// read-only tool configuration it was constructed with.
type Builder struct {
	artifacts  ArtifactLookup
	toolConfig map[string]map[string]string
}

// New builds a Builder. toolConfig carries per-stage tool invocation flags
// (keyed by dag.NodeState string, e.g. "LINTING") copied verbatim into
// TaskContext.ToolConfig for the stages that take one; a nil map means no
// stage gets tool flags.
func New(artifacts ArtifactLookup, toolConfig map[string]map[string]string) *Builder {
	return &Builder{artifacts: artifacts, toolConfig: toolConfig}
}

// Build dispatches to the per-stage builder function for stage, returning
// an error if stage has no TaskKind (PENDING, DONE, FAILED aren't
// dispatchable). The switch is closed and exhaustive over every
// dispatchable NodeState; a new stage added to the state machine without a
// matching case here falls to the default case and fails at runtime with
// the "not dispatchable" error.
func (b *Builder) Build(dc contracts.DesignContext, snap dag.Snapshot, stage dag.NodeState) (contracts.TaskContext, error) {
	dn, ok := dc.Nodes[snap.ID]
	if !ok {
		return contracts.TaskContext{}, fmt.Errorf("design context has no entry for node %q", snap.ID)
	}

	ctx := contracts.TaskContext{NodeID: snap.ID}

	switch stage {
	case dag.StateImplementing:
		b.buildImplementing(&ctx, dn)
	case dag.StateTestbenching:
		b.buildTestbenching(&ctx, dn, snap)
	case dag.StateLinting:
		b.buildLinting(&ctx, snap, stage)
	case dag.StateSimulating:
		b.buildSimulating(&ctx, snap, stage)
	case dag.StateDistilling:
		b.buildDistilling(&ctx, snap, stage)
	case dag.StateReflecting:
		b.buildReflecting(&ctx, snap)
	case dag.StateDebugging:
		b.buildDebugging(&ctx, dn, snap)
	default:
		return contracts.TaskContext{}, fmt.Errorf("stage %q is not dispatchable", stage)
	}

	ctx.PriorArtifacts = b.priorArtifacts(snap)
	return ctx, nil
}

func (b *Builder) buildImplementing(ctx *contracts.TaskContext, dn contracts.DesignNode) {
	ctx.Interface = dn.Interface
	ctx.Clocking = dn.Clocking
	ctx.CoverageGoals = dn.CoverageGoals
	ctx.RTLPath = dn.RTLFile
	ctx.SpecSummary = dn.RTLFile // target path doubles as the summary anchor until a richer spec pointer exists
}

func (b *Builder) buildTestbenching(ctx *contracts.TaskContext, dn contracts.DesignNode, snap dag.Snapshot) {
	ctx.Interface = dn.Interface
	ctx.Clocking = dn.Clocking
	ctx.TestbenchPath = dn.TestbenchFile
	ctx.TestPlan = dn.TestPlan
	if rtl, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateImplementing); ok {
		ctx.RTLPath = rtl
	} else {
		ctx.RTLPath = dn.RTLFile
	}
}

func (b *Builder) buildLinting(ctx *contracts.TaskContext, snap dag.Snapshot, stage dag.NodeState) {
	if rtl, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateImplementing); ok {
		ctx.RTLPath = rtl
	}
	ctx.ToolConfig = b.toolConfig[string(stage)]
}

func (b *Builder) buildSimulating(ctx *contracts.TaskContext, snap dag.Snapshot, stage dag.NodeState) {
	if rtl, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateImplementing); ok {
		ctx.RTLPath = rtl
	}
	if tb, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateTestbenching); ok {
		ctx.TestbenchPath = tb
	}
	ctx.ToolConfig = b.toolConfig[string(stage)]
}

func (b *Builder) buildDistilling(ctx *contracts.TaskContext, snap dag.Snapshot, stage dag.NodeState) {
	if simLog, ok := b.artifacts.GetLogPath(snap.ID, dag.StateSimulating); ok {
		ctx.SimulationLogPath = simLog
	}
	ctx.ToolConfig = b.toolConfig[string(stage)]
}

func (b *Builder) buildReflecting(ctx *contracts.TaskContext, snap dag.Snapshot) {
	if dataset, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateDistilling); ok {
		ctx.DistilledDatasetPath = dataset
	}
	if simLog, ok := b.artifacts.GetLogPath(snap.ID, dag.StateSimulating); ok {
		ctx.SimulationLogPath = simLog
	}
}

func (b *Builder) buildDebugging(ctx *contracts.TaskContext, dn contracts.DesignNode, snap dag.Snapshot) {
	ctx.Interface = dn.Interface
	if rtl, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateImplementing); ok {
		ctx.FailingRTLPath = rtl
	}
	if tb, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateTestbenching); ok {
		ctx.TestbenchPath = tb
	}
	if insights, ok := b.artifacts.GetArtifactPath(snap.ID, dag.StateReflecting); ok {
		ctx.ReflectionInsights = insights
	}
	if log, ok := b.artifacts.ReadLog(snap.ID, dag.StateSimulating); ok {
		ctx.FailureSignature = Fingerprint(log)
	}
}

func (b *Builder) priorArtifacts(snap dag.Snapshot) map[string]contracts.ArtifactRef {
	out := make(map[string]contracts.ArtifactRef, len(snap.Artifacts))
	for stage, path := range snap.Artifacts {
		ref := contracts.ArtifactRef{ArtifactPath: path}
		if log, ok := b.artifacts.GetLogPath(snap.ID, dag.NodeState(stage)); ok {
			ref.LogPath = log
		}
		out[stage] = ref
	}
	return out
}

// Fingerprint derives a stable failure signature from simulation log text,
// used as the Debug stage context's failure_signature.
func Fingerprint(logText string) string {
	sum := sha256.Sum256([]byte(logText))
	return hex.EncodeToString(sum[:])[:16]
}
