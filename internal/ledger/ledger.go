// Package ledger stores the append-only wallet transaction log and computes
// balances by aggregating it. Records are never updated in place except for
// the single pending-to-terminal status transition, and never deleted.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateReference indicates the external reference already exists.
	// Appends carrying it are idempotency violations treated as no-ops by
	// callers on the success path.
	ErrDuplicateReference = errors.New("duplicate external reference")

	// ErrNotFound indicates no transaction matches the reference.
	ErrNotFound = errors.New("transaction not found")

	// ErrAlreadyFinal indicates the transaction is in a terminal state and
	// cannot transition again.
	ErrAlreadyFinal = errors.New("transaction already in terminal state")

	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Type classifies what kind of money movement a transaction records.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeTransfer   Type = "transfer"
	TypeFunding    Type = "funding"
	TypeSwap       Type = "swap"
)

// Operation is the direction of the movement relative to the wallet.
type Operation string

const (
	OperationCredit Operation = "credit"
	OperationDebit  Operation = "debit"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
	StatusReversed  Status = "reversed"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusAbandoned, StatusReversed:
		return true
	default:
		return false
	}
}

// Transaction is the atomic unit of the ledger. ExternalReference is globally
// unique and correlates the record with provider webhook events.
type Transaction struct {
	ID                 string
	Type               Type
	Operation          Operation
	Currency           string
	AmountMinor        int64
	Status             Status
	OriginatorAccount  string
	RecipientAccount   string
	ExternalReference  string
	ProcessingFeeMinor int64
	Comment            string
	IsBudget           bool
	BudgetID           string
	BudgetItemID       string
	CreatedAt          time.Time
}

// Store is the contract implemented by ledger backends.
//
// Balance aggregates success records only: sum of amounts received minus sum
// of amounts sent for the account and currency. AvailableBalance additionally
// subtracts pending debits, so funds already handed to a provider cannot be
// spent twice while the webhook is in flight. Pending credits never count.
type Store interface {
	Append(ctx context.Context, tx Transaction) (string, error)
	FindByReference(ctx context.Context, externalReference string) (Transaction, error)
	Balance(ctx context.Context, account, currency string) (int64, error)
	AvailableBalance(ctx context.Context, account, currency string) (int64, error)
	ListByPeriod(ctx context.Context, account string, month time.Month, year int) ([]Transaction, error)
	Transition(ctx context.Context, externalReference string, to Status) (Transaction, error)
}

func validate(tx Transaction) error {
	if tx.AmountMinor <= 0 {
		return ErrInvalidAmount
	}
	if tx.ExternalReference == "" {
		return errors.New("external reference is required")
	}
	if tx.Status == "" {
		return errors.New("status is required")
	}
	return nil
}
