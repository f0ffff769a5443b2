package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cowriepay/cowrie/internal/outbox"
)

// Notification kinds emitted by the orchestrator.
const (
	KindTransferDebited   = "transfer_debited"
	KindDepositReceived   = "deposit_received"
	KindWithdrawalSettled = "withdrawal_settled"
	KindTransferFailed    = "transfer_failed"
	KindSwapCompleted     = "swap_completed"
)

// Message describes a notification payload. Content generation and delivery
// channels live outside this system; only the trigger is modelled here.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"` // recipient user id
	Reference   string `json:"reference"`   // correlated transaction reference
	Body        string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// OutboxHandler adapts a Notifier to the outbox worker.
func OutboxHandler(n Notifier) outbox.Handler {
	return func(ctx context.Context, task outbox.Task) error {
		var msg Message
		if err := json.Unmarshal(task.Payload, &msg); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		return n.Send(ctx, msg)
	}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"reference", message.Reference,
		"body", message.Body)
	return nil
}
