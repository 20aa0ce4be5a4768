package dlq

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLedger(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLedger(client, "orchestrator"), mr
}

func TestRedisLedger_RecordFailureIncrements(t *testing.T) {
	ledger, _ := newTestRedisLedger(t)
	ctx := context.Background()

	n, err := ledger.RecordFailure(ctx, "counter4", "SIMULATING")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ledger.RecordFailure(ctx, "counter4", "SIMULATING")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRedisLedger_ResetClearsCount(t *testing.T) {
	ledger, _ := newTestRedisLedger(t)
	ctx := context.Background()

	_, err := ledger.RecordFailure(ctx, "counter4", "SIMULATING")
	require.NoError(t, err)
	require.NoError(t, ledger.Reset(ctx, "counter4", "SIMULATING"))

	attempts, err := ledger.Attempts(ctx, "counter4", "SIMULATING")
	require.NoError(t, err)
	assert.Equal(t, 0, attempts)
}

func TestRedisLedger_FallsBackToMemoryWhenRedisUnreachable(t *testing.T) {
	ledger, mr := newTestRedisLedger(t)
	ctx := context.Background()

	mr.Close() // simulate Redis becoming unreachable

	n, err := ledger.RecordFailure(ctx, "counter4", "LINTING")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ledger.RecordFailure(ctx, "counter4", "LINTING")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
