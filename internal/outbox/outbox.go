// Package outbox provides a Redis-backed task queue for side effects that
// must not block or fail the primary transaction path: fee charges,
// notifications, budget refunds and asynchronous webhook processing. Unlike
// fire-and-forget goroutines, failures here are logged with attempt counts
// and retried.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task kinds dispatched through the queue.
const (
	KindChargeFee      = "charge_fee"
	KindNotify         = "notify"
	KindBudgetRefund   = "budget_refund"
	KindReconcileEvent = "reconcile_event"
)

const (
	defaultQueueKey    = "outbox:v1:tasks"
	defaultMaxAttempts = 5
	popTimeout         = time.Second
)

// Task is one queued unit of work.
type Task struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one task. Returning an error requeues the task until the
// attempt budget is exhausted.
type Handler func(ctx context.Context, task Task) error

// Queue is a Redis list based task queue with a single worker loop.
type Queue struct {
	rdb         *redis.Client
	key         string
	logger      *slog.Logger
	maxAttempts int

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewQueue builds an outbox queue over the provided Redis client.
func NewQueue(rdb *redis.Client, logger *slog.Logger) *Queue {
	return &Queue{
		rdb:         rdb,
		key:         defaultQueueKey,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		handlers:    make(map[string]Handler),
	}
}

// Register binds a handler to a task kind. Must be called before Run.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue pushes a task onto the queue. The payload is JSON-encoded.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	task := Task{ID: uuid.NewString(), Kind: kind, Payload: encoded}
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}

// Run consumes tasks until the context is cancelled. Failed tasks are pushed
// back with an incremented attempt count; tasks that exhaust their attempts
// are logged and dropped so one poison task cannot wedge the queue.
func (q *Queue) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := q.rdb.BRPop(ctx, popTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("outbox pop failed", slog.Any("error", err))
			time.Sleep(popTimeout)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			q.logger.Error("outbox task malformed", slog.Any("error", err))
			continue
		}

		q.process(ctx, task)
	}
}

func (q *Queue) process(ctx context.Context, task Task) {
	q.mu.RLock()
	handler, ok := q.handlers[task.Kind]
	q.mu.RUnlock()
	if !ok {
		q.logger.Error("outbox task has no handler", slog.String("kind", task.Kind), slog.String("id", task.ID))
		return
	}

	if err := handler(ctx, task); err != nil {
		task.Attempts++
		if task.Attempts >= q.maxAttempts {
			q.logger.Error("outbox task dropped after max attempts",
				slog.String("kind", task.Kind),
				slog.String("id", task.ID),
				slog.Int("attempts", task.Attempts),
				slog.Any("error", err))
			return
		}
		q.logger.Warn("outbox task failed, requeueing",
			slog.String("kind", task.Kind),
			slog.String("id", task.ID),
			slog.Int("attempts", task.Attempts),
			slog.Any("error", err))
		raw, encodeErr := json.Marshal(task)
		if encodeErr != nil {
			q.logger.Error("outbox requeue encode failed", slog.Any("error", encodeErr))
			return
		}
		if pushErr := q.rdb.LPush(ctx, q.key, raw).Err(); pushErr != nil {
			q.logger.Error("outbox requeue failed", slog.Any("error", pushErr))
		}
		return
	}

	q.logger.Debug("outbox task processed", slog.String("kind", task.Kind), slog.String("id", task.ID))
}
