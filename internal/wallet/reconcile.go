package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/notification"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/user"
)

// Direction classifies an inbound provider event relative to the wallet.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Event is a verified provider webhook event, normalized across both rails.
type Event struct {
	Reference     string
	Direction     Direction
	AmountMinor   int64
	Currency      string
	AccountNumber string
	Narration     string
	// Failed marks events that report an unsuccessful movement.
	Failed bool
}

// ReconcileOutcome reports what the event did to the ledger.
type ReconcileOutcome struct {
	Transaction ledger.Transaction
	// Duplicate is true when the event was a redelivery: the record was
	// already terminal and nothing changed.
	Duplicate bool
	// CounterpartName is the resolved display name of the other party,
	// for the notification collaborator.
	CounterpartName string
}

// Reconcile is the only path that moves a transaction out of pending. It is
// idempotent: redelivered events find a terminal record and change nothing.
func (s *Service) Reconcile(ctx context.Context, ev Event) (ReconcileOutcome, error) {
	if _, err := s.store.FindByReference(ctx, ev.Reference); err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			return ReconcileOutcome{}, err
		}
		if ev.Direction == DirectionCredit && !ev.Failed {
			return s.recordUnsolicitedDeposit(ctx, ev)
		}
		s.logger.Warn("webhook references unknown transaction",
			slog.String("reference", ev.Reference),
			slog.String("direction", string(ev.Direction)))
		return ReconcileOutcome{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, ev.Reference)
	}

	target := ledger.StatusSuccess
	if ev.Failed {
		target = ledger.StatusFailed
	}

	tx, err := s.store.Transition(ctx, ev.Reference, target)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyFinal) {
			return ReconcileOutcome{Transaction: tx, Duplicate: true}, nil
		}
		return ReconcileOutcome{}, err
	}

	outcome := ReconcileOutcome{Transaction: tx}
	if tx.RecipientAccount != "" {
		if counterpart, err := s.users.Get(ctx, tx.RecipientAccount); err == nil {
			outcome.CounterpartName = counterpart.Name
		}
	}

	s.notifyOutcome(ctx, tx)
	return outcome, nil
}

// recordUnsolicitedDeposit appends a success funding record for an incoming
// credit with no matching pending transaction: money arriving from outside.
func (s *Service) recordUnsolicitedDeposit(ctx context.Context, ev Event) (ReconcileOutcome, error) {
	owner, err := s.users.ByNGNAccountNumber(ctx, ev.AccountNumber)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("deposit for unknown account",
				slog.String("reference", ev.Reference),
				slog.String("account", ev.AccountNumber))
			return ReconcileOutcome{}, fmt.Errorf("%w: account %s", ErrUnknownTransaction, ev.AccountNumber)
		}
		return ReconcileOutcome{}, err
	}

	tx := ledger.Transaction{
		Type:              ledger.TypeFunding,
		Operation:         ledger.OperationCredit,
		Currency:          ev.Currency,
		AmountMinor:       ev.AmountMinor,
		Status:            ledger.StatusSuccess,
		RecipientAccount:  owner.ID,
		ExternalReference: ev.Reference,
		Comment:           ev.Narration,
	}

	id, err := s.store.Append(ctx, tx)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			// Redelivery raced another worker; the deposit is recorded.
			recorded, findErr := s.store.FindByReference(ctx, ev.Reference)
			if findErr != nil {
				return ReconcileOutcome{}, findErr
			}
			return ReconcileOutcome{Transaction: recorded, Duplicate: true}, nil
		}
		return ReconcileOutcome{}, err
	}
	tx.ID = id

	s.enqueueNotification(ctx, notification.Message{
		Kind:        notification.KindDepositReceived,
		Destination: owner.ID,
		Reference:   ev.Reference,
		Body:        fmt.Sprintf("You received %d %s", ev.AmountMinor, ev.Currency),
	})
	return ReconcileOutcome{Transaction: tx}, nil
}

func (s *Service) notifyOutcome(ctx context.Context, tx ledger.Transaction) {
	msg := notification.Message{
		Destination: tx.OriginatorAccount,
		Reference:   tx.ExternalReference,
	}
	switch {
	case tx.Status == ledger.StatusFailed:
		msg.Kind = notification.KindTransferFailed
		msg.Body = fmt.Sprintf("Your %s of %d %s failed", tx.Type, tx.AmountMinor, tx.Currency)
	case tx.Type == ledger.TypeWithdrawal:
		msg.Kind = notification.KindWithdrawalSettled
		msg.Body = fmt.Sprintf("Your withdrawal of %d %s settled", tx.AmountMinor, tx.Currency)
	default:
		msg.Kind = notification.KindTransferDebited
		msg.Body = fmt.Sprintf("Your %s of %d %s completed", tx.Type, tx.AmountMinor, tx.Currency)
	}
	s.enqueueNotification(ctx, msg)
}

// enqueueNotification queues delivery without ever blocking reconciliation.
func (s *Service) enqueueNotification(ctx context.Context, msg notification.Message) {
	if err := s.tasks.Enqueue(ctx, outbox.KindNotify, msg); err != nil {
		s.logger.Error("enqueue notification failed",
			slog.String("reference", msg.Reference),
			slog.Any("error", err))
	}
}
