package outbox

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowriepay/cowrie/internal/logging"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client, logging.Discard()), client
}

func TestEnqueueAndProcess(t *testing.T) {
	q, _ := newTestQueue(t)

	done := make(chan string, 1)
	q.Register(KindNotify, func(_ context.Context, task Task) error {
		var payload map[string]string
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return err
		}
		done <- payload["to"]
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, KindNotify, map[string]string{"to": "user-1"}))

	select {
	case to := <-done:
		assert.Equal(t, "user-1", to)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not processed")
	}
}

func TestFailedTaskIsRetried(t *testing.T) {
	q, _ := newTestQueue(t)

	var calls atomic.Int32
	done := make(chan struct{}, 1)
	q.Register(KindChargeFee, func(_ context.Context, task Task) error {
		if calls.Add(1) < 3 {
			return assert.AnError
		}
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, KindChargeFee, map[string]string{"ref": "r1"}))

	select {
	case <-done:
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	case <-time.After(5 * time.Second):
		t.Fatal("task was not retried to completion")
	}
}

func TestPoisonTaskIsDropped(t *testing.T) {
	q, client := newTestQueue(t)

	var calls atomic.Int32
	q.Register(KindBudgetRefund, func(_ context.Context, task Task) error {
		calls.Add(1)
		return assert.AnError
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, KindBudgetRefund, map[string]string{"ref": "r1"}))

	assert.Eventually(t, func() bool {
		return calls.Load() == int32(defaultMaxAttempts)
	}, 5*time.Second, 10*time.Millisecond)

	// Queue must be empty once the attempt budget is exhausted.
	assert.Eventually(t, func() bool {
		n, err := client.LLen(context.Background(), defaultQueueKey).Result()
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
}
