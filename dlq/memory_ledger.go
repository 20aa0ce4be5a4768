package dlq

import "context"

// MemoryLedger is a Ledger with no cross-restart durability, useful for
// tests and for single-process runs where losing attempt counts on a
// crash is acceptable.
type MemoryLedger struct {
	attempts map[string]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{attempts: map[string]int{}}
}

func (l *MemoryLedger) key(nodeID, stage string) string { return nodeID + "/" + stage }

func (l *MemoryLedger) Attempts(_ context.Context, nodeID, stage string) (int, error) {
	return l.attempts[l.key(nodeID, stage)], nil
}

func (l *MemoryLedger) RecordFailure(_ context.Context, nodeID, stage string) (int, error) {
	k := l.key(nodeID, stage)
	l.attempts[k]++
	return l.attempts[k], nil
}

func (l *MemoryLedger) Reset(_ context.Context, nodeID, stage string) error {
	delete(l.attempts, l.key(nodeID, stage))
	return nil
}

var _ Ledger = (*MemoryLedger)(nil)
