package orchestrator

import (
	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
	"github.com/fpgaforge/orchestrator/statemachine"
	"github.com/fpgaforge/orchestrator/taskmemory"
)

// Recover reconstructs each node's execution state from Task Memory after a
// restart: no in-flight descriptor survives a crash, so every node's state
// is derived purely from which stages have a recorded SUCCESS result,
// walked from the start of the normal stage order: a node re-enters at the
// first stage whose latest recorded attempt is not a SUCCESS. A node
// mid-repair-cycle at crash time, whose latest SIMULATING attempt failed,
// therefore re-enters at SIMULATING with no repair cycle active; its
// repair-cycle count is not restored.
func Recover(g *dag.Graph, mem *taskmemory.Store) {
	order := statemachine.StageOrder()
	for _, id := range g.IDs() {
		g.Mutate(id, func(n *dag.Node) {
			lastSuccess := -1
			for i, stage := range order {
				attempts, err := mem.ListAttempts(id, stage)
				if err != nil || len(attempts) == 0 {
					break
				}
				last := attempts[len(attempts)-1]
				if last.HasResult {
					n.Attempts[stage] = len(attempts) - 1
				} else {
					n.Attempts[stage] = len(attempts) - 1
				}
				if last.HasResult && last.Status == contracts.StatusSuccess {
					lastSuccess = i
					continue
				}
				break
			}

			n.InFlight = nil
			n.RepairActive = false

			if lastSuccess == len(order)-1 {
				n.State = dag.StateDone
				return
			}
			n.State = order[lastSuccess+1]
		})
	}
}
