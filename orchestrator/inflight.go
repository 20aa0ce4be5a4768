package orchestrator

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
)

// InFlightCounter tracks the global number of published, unresolved tasks:
// the loop increments it on each publish and decrements it when a result
// or a timeout resolves the task. The loop does not read the count back and
// has no ceiling on it, so it does not throttle publishing. It survives
// restarts when backed by Redis,
// though a crash-safe count is advisory only — the graph's own in-flight
// descriptors are the source of truth for what is actually outstanding.
type InFlightCounter interface {
	Incr(ctx context.Context) (int64, error)
	Decr(ctx context.Context) error
	Value(ctx context.Context) (int64, error)
}

// RedisInFlightCounter is backed by a single Redis key, with an in-memory
// fallback so a Redis outage degrades backpressure accuracy rather than
// crashing the loop.
type RedisInFlightCounter struct {
	client *redis.Client
	key    string

	mu       sync.Mutex
	fallback int64
	degraded bool
}

func NewRedisInFlightCounter(client *redis.Client, key string) *RedisInFlightCounter {
	return &RedisInFlightCounter{client: client, key: key}
}

func (c *RedisInFlightCounter) Incr(ctx context.Context) (int64, error) {
	if !c.isDegraded() {
		n, err := c.client.Incr(ctx, c.key).Result()
		if err == nil {
			return n, nil
		}
		c.markDegraded()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback++
	return c.fallback, nil
}

func (c *RedisInFlightCounter) Decr(ctx context.Context) error {
	if !c.isDegraded() {
		if err := c.client.Decr(ctx, c.key).Err(); err == nil {
			return nil
		}
		c.markDegraded()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback > 0 {
		c.fallback--
	}
	return nil
}

func (c *RedisInFlightCounter) Value(ctx context.Context) (int64, error) {
	if !c.isDegraded() {
		n, err := c.client.Get(ctx, c.key).Int64()
		if err == nil {
			return n, nil
		}
		if err == redis.Nil {
			return 0, nil
		}
		c.markDegraded()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallback, nil
}

func (c *RedisInFlightCounter) isDegraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func (c *RedisInFlightCounter) markDegraded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degraded = true
}

var _ InFlightCounter = (*RedisInFlightCounter)(nil)

// MemoryInFlightCounter is a non-durable InFlightCounter for tests and
// single-process runs.
type MemoryInFlightCounter struct {
	mu    sync.Mutex
	value int64
}

func NewMemoryInFlightCounter() *MemoryInFlightCounter { return &MemoryInFlightCounter{} }

func (c *MemoryInFlightCounter) Incr(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value, nil
}

func (c *MemoryInFlightCounter) Decr(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value > 0 {
		c.value--
	}
	return nil
}

func (c *MemoryInFlightCounter) Value(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

var _ InFlightCounter = (*MemoryInFlightCounter)(nil)
