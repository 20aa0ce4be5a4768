// Package dlq classifies worker-reported failures as transient or
// terminal, and tracks per-(node, stage) failure counts across
// restarts so a repeated failure is recognized even if the orchestrator
// process was restarted in between.
package dlq

import (
	"context"
	"strings"

	"github.com/fpgaforge/orchestrator/contracts"
)

// Decision is the classifier's verdict on a failed attempt.
type Decision string

const (
	DecisionRetryOnce    Decision = "retry_once"
	DecisionRejectToDLQ  Decision = "reject_to_dlq"
	DecisionTerminalFail Decision = "terminal_fail"
)

// terminalFingerprints marks log-output prefixes that are never worth
// retrying: the failure is structural, not a flaky tool invocation. New
// categories can be added here without touching classification logic.
var terminalFingerprints = []string{
	"schema/",
	"interface_mismatch",
	"missing_file",
}

// Classifier decides retry/reject/terminal for a failed stage attempt,
// using the reported log fingerprint and prior attempt count.
type Classifier struct {
	ledger Ledger
}

// Ledger tracks how many times a (node, stage) has failed, surviving
// orchestrator restarts.
type Ledger interface {
	Attempts(ctx context.Context, nodeID string, stage string) (int, error)
	RecordFailure(ctx context.Context, nodeID string, stage string) (int, error)
	Reset(ctx context.Context, nodeID string, stage string) error
}

func New(ledger Ledger) *Classifier {
	return &Classifier{ledger: ledger}
}

// Classify inspects a failed ResultMessage's log output and the node's
// prior attempt count for stage, returning a decision and updating the
// ledger.
func (c *Classifier) Classify(ctx context.Context, nodeID, stage string, result contracts.ResultMessage) (Decision, error) {
	// A worker that escalates is reporting it cannot complete the task at
	// all, not that the attempt failed transiently: this always terminates
	// the stage, skipping the retry/fingerprint path entirely.
	if result.Status == contracts.StatusEscalated {
		if _, err := c.ledger.RecordFailure(ctx, nodeID, stage); err != nil {
			return DecisionTerminalFail, err
		}
		return DecisionTerminalFail, nil
	}

	// Schema/interface mismatch and missing-input-file failures are
	// structural: no amount of retrying fixes them, so they skip the
	// attempt-count check entirely and go straight to reject_to_dlq (which
	// implies terminal for the state machine's purposes too).
	if isTerminalFingerprint(result.LogOutput) {
		if _, err := c.ledger.RecordFailure(ctx, nodeID, stage); err != nil {
			return DecisionTerminalFail, err
		}
		return DecisionRejectToDLQ, nil
	}

	attempts, err := c.ledger.RecordFailure(ctx, nodeID, stage)
	if err != nil {
		return DecisionTerminalFail, err
	}

	if attempts <= 1 {
		return DecisionRetryOnce, nil
	}
	return DecisionTerminalFail, nil
}

// ClassifyTimeout is Classify's counterpart for a locally synthesized
// timeout: no log fingerprint exists, so only the attempt count matters.
func (c *Classifier) ClassifyTimeout(ctx context.Context, nodeID, stage string) (Decision, error) {
	attempts, err := c.ledger.RecordFailure(ctx, nodeID, stage)
	if err != nil {
		return DecisionTerminalFail, err
	}
	if attempts <= 1 {
		return DecisionRetryOnce, nil
	}
	return DecisionTerminalFail, nil
}

// Clear resets a (node, stage)'s attempt count, called once the stage
// eventually succeeds so a later, unrelated failure starts fresh.
func (c *Classifier) Clear(ctx context.Context, nodeID, stage string) error {
	return c.ledger.Reset(ctx, nodeID, stage)
}

// IsRetry reports whether decision permits another attempt of the same
// stage — the only distinction the state machine itself needs to make.
func IsRetry(d Decision) bool { return d == DecisionRetryOnce }

func isTerminalFingerprint(logOutput string) bool {
	lower := strings.ToLower(logOutput)
	for _, fp := range terminalFingerprints {
		if strings.Contains(lower, fp) {
			return true
		}
	}
	return false
}
