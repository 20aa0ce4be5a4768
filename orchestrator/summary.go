package orchestrator

import "github.com/fpgaforge/orchestrator/dag"

// NodeSummary describes one node's terminal state for the end-of-run
// report.
type NodeSummary struct {
	NodeID        string
	State         dag.NodeState
	FailedStage   dag.NodeState
	FailureReason string
	LastLogPath   string
}

// Summary is the final report emitted on run termination: every node's
// terminal state, the stage that failed if any, and the canonical failure
// reason.
type Summary struct {
	Nodes      []NodeSummary
	AllSucceeded bool
}

// Summary builds the run's final report from the current graph state.
func (l *Loop) Summary() Summary {
	snapshots := l.deps.Graph.AllSnapshots()
	summary := Summary{AllSucceeded: true}
	for id, snap := range snapshots {
		ns := NodeSummary{
			NodeID:        id,
			State:         snap.State,
			FailedStage:   snap.FailedStage,
			FailureReason: snap.FailureReason,
			LastLogPath:   snap.LastLogPath,
		}
		if snap.State != dag.StateDone {
			summary.AllSucceeded = false
		}
		summary.Nodes = append(summary.Nodes, ns)
	}
	return summary
}
