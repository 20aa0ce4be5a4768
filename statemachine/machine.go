package statemachine

import (
	"github.com/fpgaforge/orchestrator/dag"
)

// Decision is what the DLQ classifier told the caller to do with a failed
// stage attempt. The state machine only needs to know whether to retry the
// same stage or treat it as exhausted; routing the original message to the
// dead letter queue is the broker's concern, not the node's state.
type Decision int

const (
	DecisionRetry Decision = iota
	DecisionExhausted
)

// Machine drives per-node stage transitions. It holds no state of its own —
// every call operates on a *dag.Node reached through dag.Graph.Mutate, so
// the graph's lock is the only synchronization needed.
type Machine struct{}

func New() *Machine { return &Machine{} }

// Enter moves a PENDING node into its first dispatchable stage and leaves a
// node in any other state unchanged, so the orchestrator loop calls it
// before every dispatch.
func (m *Machine) Enter(n *dag.Node) {
	if n.State == dag.StatePending {
		n.State = firstStage()
	}
}

// ApplySuccess runs stage's postcondition against the result, then either
// advances the node to its next stage or, if stage was the last one,
// marks it DONE. A postcondition failure is reported as a terminal,
// non-retryable error: the caller should route it through FailTerminal
// rather than retry, since no amount of retrying fixes a malformed
// artifact that the worker itself believes succeeded.
func (m *Machine) ApplySuccess(n *dag.Node, stage dag.NodeState, in PostconditionInput) error {
	check, ok := Postconditions[stage]
	if ok {
		if err := check(in); err != nil {
			return err
		}
	}
	n.InFlight = nil
	advance(n)
	return nil
}

// advance moves n past stage it just completed successfully. REFLECTING and
// DEBUGGING have special-cased successors because the repair cycle departs
// from the normal stage order at exactly those two points.
func advance(n *dag.Node) {
	switch n.State {
	case dag.StateReflecting:
		if n.RepairActive {
			n.State = dag.StateDebugging
			return
		}
		n.State = dag.StateDone
	case dag.StateDebugging:
		// The repair cycle's debug pass re-opens simulation. Once SIMULATING
		// succeeds this time, the node proceeds through the normal order
		// again (DISTILLING, REFLECTING, DONE) to produce final artifacts.
		n.RepairActive = false
		n.State = dag.StateSimulating
	default:
		next, ok := nextNormalStage(n.State)
		if !ok {
			n.State = dag.StateDone
			return
		}
		n.State = next
	}
}

// ApplyFailure handles a failed stage attempt per decision. A retry leaves
// the node's state unchanged so the orchestrator loop re-dispatches the
// same stage; an exhausted SIMULATING failure enters a repair cycle
// (DISTILLING -> REFLECTING -> DEBUGGING -> SIMULATING) up to twice before
// the node is marked FAILED. Any other exhausted stage fails the node
// immediately. Returns true if the node is now FAILED.
func (m *Machine) ApplyFailure(n *dag.Node, stage dag.NodeState, decision Decision, reason string) bool {
	n.InFlight = nil

	if decision == DecisionRetry {
		n.Attempts[stage]++
		return false
	}

	if stage == dag.StateSimulating && n.RepairCycles < 2 {
		n.RepairCycles++
		n.RepairActive = true
		n.State = dag.StateDistilling
		return false
	}

	n.State = dag.StateFailed
	n.FailedStage = stage
	n.FailureReason = reason
	return true
}

// FailTerminal marks a node FAILED outright, bypassing retry and repair —
// used for postcondition (InterfaceMismatch) failures and for validation
// failures caught before a task is ever published.
func (m *Machine) FailTerminal(n *dag.Node, stage dag.NodeState, reason string) {
	n.InFlight = nil
	n.State = dag.StateFailed
	n.FailedStage = stage
	n.FailureReason = reason
}

// ApplyTimeout treats an in-flight stage whose deadline elapsed as a
// failure with no worker-reported log: the first occurrence per stage is
// retried, the second is exhausted. This mirrors the attempt-count policy
// ApplyFailure already applies to worker-reported failures, so timeouts
// need no separate counter.
func (m *Machine) ApplyTimeout(n *dag.Node, stage dag.NodeState) bool {
	decision := DecisionRetry
	if n.Attempts[stage] >= 1 {
		decision = DecisionExhausted
	}
	return m.ApplyFailure(n, stage, decision, "timeout")
}
