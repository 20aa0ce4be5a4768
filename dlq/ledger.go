package dlq

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RedisLedger is the cross-restart attempt ledger backed by Redis, with an
// in-memory map as a fallback when Redis is unreachable — losing the
// ledger on a Redis outage only means an occasional extra retry, never a
// crash.
type RedisLedger struct {
	client *redis.Client
	prefix string

	mu       sync.Mutex
	fallback map[string]int
	degraded bool
}

func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	return &RedisLedger{
		client:   client,
		prefix:   prefix,
		fallback: map[string]int{},
	}
}

func (l *RedisLedger) key(nodeID, stage string) string {
	return fmt.Sprintf("%s:attempts:%s:%s", l.prefix, nodeID, stage)
}

func (l *RedisLedger) Attempts(ctx context.Context, nodeID, stage string) (int, error) {
	k := l.key(nodeID, stage)
	if !l.isDegraded() {
		n, err := l.client.Get(ctx, k).Int()
		if err == nil {
			return n, nil
		}
		if err == redis.Nil {
			return 0, nil
		}
		l.markDegraded()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fallback[k], nil
}

func (l *RedisLedger) RecordFailure(ctx context.Context, nodeID, stage string) (int, error) {
	k := l.key(nodeID, stage)
	if !l.isDegraded() {
		n, err := l.client.Incr(ctx, k).Result()
		if err == nil {
			return int(n), nil
		}
		l.markDegraded()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fallback[k]++
	return l.fallback[k], nil
}

func (l *RedisLedger) Reset(ctx context.Context, nodeID, stage string) error {
	k := l.key(nodeID, stage)
	if !l.isDegraded() {
		if err := l.client.Del(ctx, k).Err(); err == nil {
			return nil
		}
		l.markDegraded()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fallback, k)
	return nil
}

func (l *RedisLedger) isDegraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

func (l *RedisLedger) markDegraded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.degraded = true
}

var _ Ledger = (*RedisLedger)(nil)
