// Package orchestrator is the sole writer of DAG execution state: it scans
// for ready nodes, dispatches their next stage, drains worker results, and
// applies state machine transitions. It never blocks a tick on broker I/O
// beyond what the broker adapter itself already makes asynchronous.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fpgaforge/orchestrator/broker"
	"github.com/fpgaforge/orchestrator/config"
	"github.com/fpgaforge/orchestrator/contextbuilder"
	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
	"github.com/fpgaforge/orchestrator/dlq"
	"github.com/fpgaforge/orchestrator/logging"
	"github.com/fpgaforge/orchestrator/statemachine"
	"github.com/fpgaforge/orchestrator/taskmemory"
	"github.com/fpgaforge/orchestrator/telemetry"
)

// ErrStalled is returned by Run when a node has reached FAILED and no
// further progress is possible in the rest of the graph.
var ErrStalled = errors.New("orchestrator: run stalled on a failed node with no recoverable path")

// Publisher is the slice of the broker adapter the loop depends on,
// narrowed to an interface so tests can supply a fake rather than a live
// AMQP connection.
type Publisher interface {
	Publish(ctx context.Context, msg contracts.TaskMessage) error
	Close() error
}

// Deps bundles every collaborator the loop needs, all supplied explicitly
// by the caller (cmd/orchestrator's wiring) rather than constructed here.
type Deps struct {
	Graph      *dag.Graph
	DesignCtx  contracts.DesignContext
	Machine    *statemachine.Machine
	Builder    *contextbuilder.Builder
	Memory     *taskmemory.Store
	Broker     Publisher
	Classifier *dlq.Classifier
	InFlight   InFlightCounter
	Logger     logging.ComponentLogger
	Emitter    telemetry.Emitter
	Config     config.Config
}

type inFlightRef struct {
	nodeID  string
	stage   dag.NodeState
	attempt int
}

// Loop is single-writer: Tick must be called from one goroutine at a time.
// The results consumer and broker publish path run their own I/O
// goroutines, but every mutation of graph state and the in-flight index
// happens inside Tick.
type Loop struct {
	deps       Deps
	logger     logging.Logger
	deliveries <-chan broker.Delivery

	inFlightByTaskID map[string]inFlightRef
}

func NewLoop(deps Deps, deliveries <-chan broker.Delivery) *Loop {
	return &Loop{
		deps:             deps,
		logger:           deps.Logger.WithComponent("orchestrator.loop"),
		deliveries:       deliveries,
		inFlightByTaskID: map[string]inFlightRef{},
	}
}

// Run ticks until the graph completes, stalls, an external deadline
// elapses, or ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	var deadlineCh <-chan time.Time
	if l.deps.Config.RunDeadline > 0 {
		timer := time.NewTimer(l.deps.Config.RunDeadline)
		defer timer.Stop()
		deadlineCh = timer.C
	}

	for {
		if l.deps.Graph.AllDone() {
			l.logger.Info("run complete", nil)
			return nil
		}
		if l.deps.Graph.AnyStalled() {
			l.logger.Error("run stalled", nil)
			return ErrStalled
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadlineCh:
			return fmt.Errorf("orchestrator: run deadline elapsed")
		default:
		}

		changed, err := l.Tick(ctx)
		if err != nil {
			l.logger.Error("tick failed", map[string]interface{}{"error": err.Error()})
		}
		if !changed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.deps.Config.TickInterval):
			}
		}
	}
}

// Tick runs one iteration of the five-step algorithm: drain results, apply
// them, dispatch ready nodes, check timeouts. Returns whether anything
// changed, so Run can decide whether to sleep.
func (l *Loop) Tick(ctx context.Context) (bool, error) {
	changed := false

	for {
		select {
		case d, ok := <-l.deliveries:
			if !ok {
				goto drained
			}
			l.applyResult(ctx, d)
			changed = true
		default:
			goto drained
		}
	}
drained:

	for _, id := range l.deps.Graph.Ready() {
		if l.dispatch(ctx, id) {
			changed = true
		}
	}

	for _, id := range l.deps.Graph.ExpiredInFlight(time.Now()) {
		l.applyTimeout(ctx, id)
		changed = true
	}

	return changed, nil
}

// applyResult correlates a delivery by task_id, validates it, records it to
// Task Memory, and feeds it through the state machine. A delivery with an
// unrecognized task_id is nacked to DLQ: it belongs to a superseded attempt
// (a timeout already re-published the stage) or was never ours.
func (l *Loop) applyResult(ctx context.Context, d broker.Delivery) {
	ref, ok := l.inFlightByTaskID[d.Result.TaskID]
	if !ok {
		l.logger.Warn("result for unknown task_id, nacking to DLQ", map[string]interface{}{"task_id": d.Result.TaskID})
		d.Nack()
		return
	}
	delete(l.inFlightByTaskID, d.Result.TaskID)
	l.deps.InFlight.Decr(ctx)

	if err := contracts.ValidateResult(d.Result); err != nil {
		l.logger.Warn("invalid result envelope, nacking to DLQ", map[string]interface{}{"task_id": d.Result.TaskID, "error": err.Error()})
		d.Nack()
		return
	}

	artifactSrc := d.Result.ArtifactsPath
	if err := l.deps.Memory.RecordResult(ref.nodeID, ref.stage, ref.attempt, d.Result, artifactSrc); err != nil {
		l.logger.Error("failed to record result", map[string]interface{}{"node_id": ref.nodeID, "error": err.Error()})
		d.Nack()
		return
	}
	d.Ack()

	snap, _ := l.deps.Graph.Snapshot(ref.nodeID)
	l.deps.Graph.Mutate(ref.nodeID, func(n *dag.Node) {
		if logPath, ok := l.deps.Memory.GetLogPath(ref.nodeID, ref.stage); ok {
			n.LastLogPath = logPath
		}
		switch d.Result.Status {
		case contracts.StatusSuccess:
			l.handleSuccess(ctx, n, ref, d.Result, snap)
		default:
			l.handleFailure(ctx, n, ref, d.Result)
		}
	})
}

// handleSuccess runs inside Graph.Mutate, so it takes the node's snapshot
// from its caller rather than calling Graph.Snapshot under the held lock.
func (l *Loop) handleSuccess(ctx context.Context, n *dag.Node, ref inFlightRef, result contracts.ResultMessage, snap dag.Snapshot) {
	var artifactText string
	if path, ok := l.deps.Memory.GetArtifactPath(ref.nodeID, ref.stage); ok {
		if text, err := readFile(path); err == nil {
			artifactText = text
		}
	}

	var signals []contracts.Signal
	if dn, ok := l.deps.DesignCtx.Nodes[ref.nodeID]; ok {
		signals = dn.Interface.Signals
	}

	err := l.deps.Machine.ApplySuccess(n, ref.stage, statemachine.PostconditionInput{
		Result:          result,
		ArtifactText:    artifactText,
		ExpectedSignals: signals,
		Snapshot:        snap,
	})
	if err != nil {
		l.logger.Warn("postcondition failed, failing node", map[string]interface{}{"node_id": ref.nodeID, "stage": string(ref.stage), "error": err.Error()})
		l.deps.Machine.FailTerminal(n, ref.stage, err.Error())
		return
	}
	l.deps.Classifier.Clear(ctx, ref.nodeID, string(ref.stage))
	l.deps.Emitter.AddCounter("stage_success_total", 1, map[string]string{"stage": string(ref.stage)})
}

func (l *Loop) handleFailure(ctx context.Context, n *dag.Node, ref inFlightRef, result contracts.ResultMessage) {
	decision, err := l.deps.Classifier.Classify(ctx, ref.nodeID, string(ref.stage), result)
	if err != nil {
		l.logger.Error("classifier error, treating as terminal", map[string]interface{}{"node_id": ref.nodeID, "error": err.Error()})
		decision = dlq.DecisionTerminalFail
	}

	smDecision := statemachine.DecisionExhausted
	if dlq.IsRetry(decision) {
		smDecision = statemachine.DecisionRetry
	}
	failed := l.deps.Machine.ApplyFailure(n, ref.stage, smDecision, result.LogOutput)
	l.deps.Emitter.AddCounter("stage_failure_total", 1, map[string]string{"stage": string(ref.stage), "decision": string(decision)})
	if failed {
		l.logger.Error("node failed", map[string]interface{}{"node_id": ref.nodeID, "stage": string(ref.stage)})
	}
}

// applyTimeout synthesizes a local failure for a node whose in-flight
// deadline elapsed. Unlike a worker-reported failure, a timeout has no log
// fingerprint to classify — it goes straight to the state machine, whose
// own per-stage attempt count already implements "first occurrence
// transient, second terminal."
func (l *Loop) applyTimeout(ctx context.Context, nodeID string) {
	snap, ok := l.deps.Graph.Snapshot(nodeID)
	if !ok || snap.InFlight == nil {
		return
	}
	stage := snap.InFlight.Stage
	taskID := snap.InFlight.TaskID
	delete(l.inFlightByTaskID, taskID)
	l.deps.InFlight.Decr(ctx)

	var failed bool
	l.deps.Graph.Mutate(nodeID, func(n *dag.Node) {
		failed = l.deps.Machine.ApplyTimeout(n, stage)
	})
	l.deps.Emitter.AddCounter("stage_timeout_total", 1, map[string]string{"stage": string(stage)})
	if failed {
		l.logger.Error("node failed after repeated timeout", map[string]interface{}{"node_id": nodeID, "stage": string(stage)})
	} else {
		l.logger.Warn("stage deadline elapsed, retrying", map[string]interface{}{"node_id": nodeID, "stage": string(stage)})
	}
}

// dispatch builds and publishes the next stage for a ready node, recording
// the attempt in Task Memory and the in-flight descriptor on the node.
// Returns true when the task was published or when the node was failed
// because its context could not be built or its task failed validation;
// returns false when the node is already terminal or when recording or
// publishing the task failed (the node is then left ready for the next
// tick).
func (l *Loop) dispatch(ctx context.Context, nodeID string) bool {
	ctx, span := l.deps.Emitter.StartSpan(ctx, "orchestrator.dispatch")
	span.SetAttribute("node_id", nodeID)
	defer span.End()

	l.deps.Graph.Mutate(nodeID, func(n *dag.Node) {
		l.deps.Machine.Enter(n)
	})

	snap, ok := l.deps.Graph.Snapshot(nodeID)
	if !ok || snap.State == dag.StateDone || snap.State == dag.StateFailed {
		return false
	}
	stage := snap.State

	taskCtx, err := l.deps.Builder.Build(l.deps.DesignCtx, snap, stage)
	if err != nil {
		span.RecordError(err)
		l.logger.Error("context build failed, failing node", map[string]interface{}{"node_id": nodeID, "error": err.Error()})
		l.deps.Graph.Mutate(nodeID, func(n *dag.Node) {
			l.deps.Machine.FailTerminal(n, stage, err.Error())
		})
		return true
	}

	entityType, _ := stageEntityType(stage)
	taskKind, _ := statemachine.TaskKindFor(stage)
	attempt := snap.Attempts[stage]
	traceID, spanID := span.IDs()

	msg := contracts.TaskMessage{
		TaskID:        uuid.NewString(),
		CorrelationID: "corr-" + nodeID,
		CreatedAt:     time.Now().UTC(),
		Priority:      contracts.TaskPriority(l.deps.Config.DefaultPriority),
		EntityType:    entityType,
		TaskKind:      taskKind,
		Context:       taskCtx,
		TraceID:       traceID,
		SpanID:        spanID,
	}

	if err := contracts.ValidateTask(msg); err != nil {
		reason := contracts.ValidationReason(err)
		l.logger.Error("task failed validation, never published", map[string]interface{}{"node_id": nodeID, "reason": reason})
		l.deps.Graph.Mutate(nodeID, func(n *dag.Node) {
			l.deps.Machine.FailTerminal(n, stage, reason)
		})
		return true
	}

	if err := l.deps.Memory.RecordPublish(nodeID, stage, attempt, msg); err != nil {
		l.logger.Error("failed to record publish", map[string]interface{}{"node_id": nodeID, "error": err.Error()})
		return false
	}

	if err := l.deps.Broker.Publish(ctx, msg); err != nil {
		span.RecordError(err)
		l.logger.Error("publish failed", map[string]interface{}{"node_id": nodeID, "error": err.Error()})
		return false
	}

	l.deps.InFlight.Incr(ctx)
	deadline := time.Now().Add(statemachine.DeadlineFor(stage, l.deadlineOverrides()))
	l.inFlightByTaskID[msg.TaskID] = inFlightRef{nodeID: nodeID, stage: stage, attempt: attempt}
	l.deps.Graph.Mutate(nodeID, func(n *dag.Node) {
		n.InFlight = &dag.InFlight{Stage: stage, TaskID: msg.TaskID, Deadline: deadline}
	})
	l.deps.Emitter.AddCounter("tasks_published_total", 1, map[string]string{"entity_type": string(entityType)})
	return true
}

func (l *Loop) deadlineOverrides() map[dag.NodeState]time.Duration {
	if len(l.deps.Config.StageDeadlines) == 0 {
		return nil
	}
	out := make(map[dag.NodeState]time.Duration, len(l.deps.Config.StageDeadlines))
	for stage, d := range l.deps.Config.StageDeadlines {
		out[dag.NodeState(stage)] = d
	}
	return out
}

func stageEntityType(stage dag.NodeState) (contracts.EntityType, bool) {
	kind, ok := statemachine.TaskKindFor(stage)
	if !ok {
		return "", false
	}
	entity, ok := contracts.EntityForKind(kind)
	return entity, ok
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
