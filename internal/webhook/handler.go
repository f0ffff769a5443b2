package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/wallet"
)

// dedupeTTL bounds how long delivered event ids are remembered. Providers
// stop retrying well inside this window.
const dedupeTTL = 48 * time.Hour

// Dedupe remembers processed event ids so redeliveries do nothing. The
// ledger's terminal-state guard backs this up if Redis forgets.
type Dedupe struct {
	client *redis.Client
}

// NewDedupe constructs a Dedupe on the shared Redis client.
func NewDedupe(client *redis.Client) *Dedupe {
	return &Dedupe{client: client}
}

// FirstDelivery reports whether this event id has not been seen before.
func (d *Dedupe) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, "webhook:seen:"+eventID, 1, dedupeTTL).Result()
}

// Forget releases an event id so the provider's next redelivery is treated
// as a first delivery again.
func (d *Dedupe) Forget(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, "webhook:seen:"+eventID).Err()
}

// Handler terminates the two provider webhook endpoints. Both respond 200
// promptly and push the real work through the outbox.
type Handler struct {
	verifier *Verifier
	dedupe   *Dedupe
	tasks    wallet.TaskQueue
	logger   *slog.Logger
}

// NewHandler constructs a webhook handler.
func NewHandler(verifier *Verifier, dedupe *Dedupe, tasks wallet.TaskQueue, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, dedupe: dedupe, tasks: tasks, logger: logger}
}

// ngnEvent is the NGN rail's webhook shape. That rail signs nothing; the
// endpoint sits behind a trusted network boundary.
type ngnEvent struct {
	TransactionType      string `json:"transactionType"` // Credit or Debit
	Amount               int64  `json:"amount"`          // minor units
	TransactionReference string `json:"transactionReference"`
	Narrations           string `json:"narrations"`
	AccountNumber        string `json:"accountNumber"`
	InstrumentNumber     string `json:"instrumentNumber"`
}

// NGN receives NGN rail events.
func (h *Handler) NGN(c *fiber.Ctx) error {
	var ev ngnEvent
	if err := c.BodyParser(&ev); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if ev.TransactionReference == "" {
		return fiber.NewError(http.StatusBadRequest, "missing transaction reference")
	}

	direction := wallet.DirectionCredit
	if strings.EqualFold(ev.TransactionType, "Debit") {
		direction = wallet.DirectionDebit
	}

	return h.accept(c, "ngn:"+ev.TransactionReference, wallet.Event{
		Reference:     ev.TransactionReference,
		Direction:     direction,
		AmountMinor:   ev.Amount,
		Currency:      currency.NGN,
		AccountNumber: ev.AccountNumber,
		Narration:     ev.Narrations,
	})
}

// mcEvent is the multi-currency rail's webhook shape.
type mcEvent struct {
	Event string `json:"event"` // e.g. transfer.successful, transfer.failed
	Data  struct {
		Reference     string `json:"reference"`
		Type          string `json:"type"` // CREDIT or DEBIT
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
		AccountNumber string `json:"account_number"`
		Narration     string `json:"narration"`
	} `json:"data"`
}

// Multicurrency receives svix-signed events from the multi-currency rail.
// Verification failures are dropped with a 200 and no effects, so a forged
// or corrupted delivery neither changes state nor triggers retries.
func (h *Handler) Multicurrency(c *fiber.Ctx) error {
	id := c.Get("svix-id")
	timestamp := c.Get("svix-timestamp")
	signature := c.Get("svix-signature")
	body := c.Body()

	if err := h.verifier.Verify(id, timestamp, signature, body); err != nil {
		h.logger.Warn("webhook signature rejected",
			slog.String("svix_id", id),
			slog.Any("error", err))
		return c.SendStatus(http.StatusOK)
	}

	var ev mcEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if ev.Data.Reference == "" {
		return fiber.NewError(http.StatusBadRequest, "missing reference")
	}

	direction := wallet.DirectionCredit
	if strings.EqualFold(ev.Data.Type, "DEBIT") {
		direction = wallet.DirectionDebit
	}

	return h.accept(c, "mc:"+id, wallet.Event{
		Reference:     ev.Data.Reference,
		Direction:     direction,
		AmountMinor:   ev.Data.Amount,
		Currency:      ev.Data.Currency,
		AccountNumber: ev.Data.AccountNumber,
		Narration:     ev.Data.Narration,
		Failed:        strings.HasSuffix(ev.Event, ".failed"),
	})
}

// accept dedupes the event and queues reconciliation. The response is always
// 200 so the provider stops redelivering.
func (h *Handler) accept(c *fiber.Ctx, eventID string, ev wallet.Event) error {
	ctx := c.UserContext()

	first, err := h.dedupe.FirstDelivery(ctx, eventID)
	if err != nil {
		// Redis down: let reconcile's own idempotency absorb duplicates.
		h.logger.Error("webhook dedupe unavailable",
			slog.String("event_id", eventID),
			slog.Any("error", err))
		first = true
	}
	if !first {
		return c.SendStatus(http.StatusOK)
	}

	if err := h.tasks.Enqueue(ctx, outbox.KindReconcileEvent, ev); err != nil {
		h.logger.Error("enqueue reconcile failed",
			slog.String("reference", ev.Reference),
			slog.Any("error", err))
		// Unmark the id so the provider's retry is not swallowed as a
		// duplicate while nothing is queued.
		if delErr := h.dedupe.Forget(ctx, eventID); delErr != nil {
			h.logger.Error("webhook dedupe release failed",
				slog.String("event_id", eventID),
				slog.Any("error", delErr))
		}
		return fiber.NewError(http.StatusInternalServerError, "queue unavailable")
	}
	return c.SendStatus(http.StatusOK)
}

// Processor is the outbox side: it replays queued events into the
// orchestrator's reconcile path.
type Processor struct {
	wallets *wallet.Service
	logger  *slog.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(wallets *wallet.Service, logger *slog.Logger) *Processor {
	return &Processor{wallets: wallets, logger: logger}
}

// HandleReconcileEvent decodes a queued event and reconciles it. Unknown
// references are dropped, not retried: redelivery would never resolve them.
func (p *Processor) HandleReconcileEvent(ctx context.Context, task outbox.Task) error {
	var ev wallet.Event
	if err := json.Unmarshal(task.Payload, &ev); err != nil {
		return fmt.Errorf("decode reconcile event: %w", err)
	}

	out, err := p.wallets.Reconcile(ctx, ev)
	if err != nil {
		if errors.Is(err, wallet.ErrUnknownTransaction) {
			p.logger.Warn("dropping event for unknown transaction",
				slog.String("reference", ev.Reference))
			return nil
		}
		return err
	}
	if out.Duplicate {
		p.logger.Info("event redelivery ignored",
			slog.String("reference", ev.Reference))
	}
	return nil
}
