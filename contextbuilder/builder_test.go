package contextbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
)

type fakeLookup struct {
	artifacts map[string]map[dag.NodeState]string
	logs      map[string]map[dag.NodeState]string
	logText   map[string]map[dag.NodeState]string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		artifacts: map[string]map[dag.NodeState]string{},
		logs:      map[string]map[dag.NodeState]string{},
		logText:   map[string]map[dag.NodeState]string{},
	}
}

func (f *fakeLookup) put(nodeID string, stage dag.NodeState, artifact, log, text string) {
	if f.artifacts[nodeID] == nil {
		f.artifacts[nodeID] = map[dag.NodeState]string{}
		f.logs[nodeID] = map[dag.NodeState]string{}
		f.logText[nodeID] = map[dag.NodeState]string{}
	}
	f.artifacts[nodeID][stage] = artifact
	f.logs[nodeID][stage] = log
	f.logText[nodeID][stage] = text
}

func (f *fakeLookup) GetArtifactPath(nodeID string, stage dag.NodeState) (string, bool) {
	v, ok := f.artifacts[nodeID][stage]
	return v, ok
}

func (f *fakeLookup) GetLogPath(nodeID string, stage dag.NodeState) (string, bool) {
	v, ok := f.logs[nodeID][stage]
	return v, ok
}

func (f *fakeLookup) ReadLog(nodeID string, stage dag.NodeState) (string, bool) {
	v, ok := f.logText[nodeID][stage]
	return v, ok
}

func testDesignContext() contracts.DesignContext {
	return contracts.DesignContext{
		DesignContextHash: "abc123",
		Nodes: map[string]contracts.DesignNode{
			"counter4": {
				RTLFile:       "/artifacts/generated/rtl/counter4.sv",
				TestbenchFile: "/artifacts/generated/rtl/counter4_tb.sv",
				Interface: contracts.Interface{Signals: []contracts.Signal{
					{Name: "clk", Direction: "input", Width: 1},
					{Name: "count", Direction: "output", Width: 4},
				}},
				Clocking: contracts.Clocking{ClockName: "clk", FreqHz: 100_000_000},
				TestPlan: []contracts.TestPlanScenario{
					{Name: "reset_holds_zero", Description: "count stays 0 while reset is asserted"},
					{Name: "wraps_at_max", Description: "count wraps to 0 after reaching its maximum value"},
				},
			},
		},
	}
}

func TestBuild_Implementing_NoPriorArtifacts(t *testing.T) {
	lookup := newFakeLookup()
	b := New(lookup, nil)
	g, err := dag.NewGraph([]dag.NodeDef{{ID: "counter4"}})
	require.NoError(t, err)
	snap, _ := g.Snapshot("counter4")

	ctx, err := b.Build(testDesignContext(), snap, dag.StateImplementing)
	require.NoError(t, err)
	assert.Equal(t, "counter4", ctx.NodeID)
	assert.Len(t, ctx.Interface.Signals, 2)
	assert.Equal(t, "/artifacts/generated/rtl/counter4.sv", ctx.RTLPath)
	assert.Empty(t, ctx.PriorArtifacts)
}

func TestBuild_Testbenching_UsesRecordedRTLPath(t *testing.T) {
	lookup := newFakeLookup()
	lookup.put("counter4", dag.StateImplementing, "/mem/counter4/IMPLEMENTING/artifact.sv", "/mem/counter4/IMPLEMENTING/log.txt", "module counter4")
	b := New(lookup, nil)
	g, _ := dag.NewGraph([]dag.NodeDef{{ID: "counter4"}})
	snap, _ := g.Snapshot("counter4")

	ctx, err := b.Build(testDesignContext(), snap, dag.StateTestbenching)
	require.NoError(t, err)
	assert.Equal(t, "/mem/counter4/IMPLEMENTING/artifact.sv", ctx.RTLPath)
	assert.Equal(t, "/artifacts/generated/rtl/counter4_tb.sv", ctx.TestbenchPath)
	require.Len(t, ctx.TestPlan, 2)
	assert.Equal(t, "reset_holds_zero", ctx.TestPlan[0].Name)
	assert.Equal(t, "wraps_at_max", ctx.TestPlan[1].Name)
}

func TestBuild_Linting_IncludesConfiguredToolConfig(t *testing.T) {
	lookup := newFakeLookup()
	toolConfig := map[string]map[string]string{
		"LINTING": {"ruleset": "sv-default", "severity_floor": "warning"},
	}
	b := New(lookup, toolConfig)
	g, _ := dag.NewGraph([]dag.NodeDef{{ID: "counter4"}})
	snap, _ := g.Snapshot("counter4")

	ctx, err := b.Build(testDesignContext(), snap, dag.StateLinting)
	require.NoError(t, err)
	assert.Equal(t, "sv-default", ctx.ToolConfig["ruleset"])
	assert.Equal(t, "warning", ctx.ToolConfig["severity_floor"])
}

func TestBuild_Simulating_OmitsToolConfigWhenNoneConfigured(t *testing.T) {
	lookup := newFakeLookup()
	b := New(lookup, nil)
	g, _ := dag.NewGraph([]dag.NodeDef{{ID: "counter4"}})
	snap, _ := g.Snapshot("counter4")

	ctx, err := b.Build(testDesignContext(), snap, dag.StateSimulating)
	require.NoError(t, err)
	assert.Empty(t, ctx.ToolConfig)
}

func TestBuild_Debugging_IncludesFailureSignature(t *testing.T) {
	lookup := newFakeLookup()
	lookup.put("counter4", dag.StateImplementing, "/mem/counter4/IMPLEMENTING/artifact.sv", "", "")
	lookup.put("counter4", dag.StateSimulating, "", "/mem/counter4/SIMULATING/log.txt", "assertion failed at t=120ns")
	b := New(lookup, nil)
	g, _ := dag.NewGraph([]dag.NodeDef{{ID: "counter4"}})
	snap, _ := g.Snapshot("counter4")

	ctx, err := b.Build(testDesignContext(), snap, dag.StateDebugging)
	require.NoError(t, err)
	assert.NotEmpty(t, ctx.FailureSignature)
	assert.Equal(t, Fingerprint("assertion failed at t=120ns"), ctx.FailureSignature)
}

func TestBuild_DeterministicGivenSameInputs(t *testing.T) {
	lookup := newFakeLookup()
	b := New(lookup, nil)
	g, _ := dag.NewGraph([]dag.NodeDef{{ID: "counter4"}})
	snap, _ := g.Snapshot("counter4")

	ctx1, err1 := b.Build(testDesignContext(), snap, dag.StateImplementing)
	ctx2, err2 := b.Build(testDesignContext(), snap, dag.StateImplementing)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, ctx1, ctx2)
}

func TestBuild_UnknownNode(t *testing.T) {
	lookup := newFakeLookup()
	b := New(lookup, nil)
	g, _ := dag.NewGraph([]dag.NodeDef{{ID: "missing_in_design_context"}})
	snap, _ := g.Snapshot("missing_in_design_context")

	_, err := b.Build(contracts.DesignContext{Nodes: map[string]contracts.DesignNode{}}, snap, dag.StateImplementing)
	assert.Error(t, err)
}

func TestBuild_NonDispatchableStage(t *testing.T) {
	lookup := newFakeLookup()
	b := New(lookup, nil)
	g, _ := dag.NewGraph([]dag.NodeDef{{ID: "counter4"}})
	snap, _ := g.Snapshot("counter4")

	_, err := b.Build(testDesignContext(), snap, dag.StateDone)
	assert.Error(t, err)
}
