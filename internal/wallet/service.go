// Package wallet implements the transaction orchestrator: it validates and
// initiates money movement on the rails, records pending ledger entries, and
// reconciles them when provider webhooks arrive.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cowriepay/cowrie/internal/config"
	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/provider"
	"github.com/cowriepay/cowrie/internal/user"
)

// TaskQueue abstracts the outbox for side effects that must not block the
// primary path.
type TaskQueue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// Config tunes orchestrator behaviour.
type Config struct {
	Limits           map[string]config.AmountLimits
	TransferFeeMinor int64
	// FeeAccountNumber receives processing fees on the NGN rail.
	FeeAccountNumber string
	FeeBankCode      string
}

// Service orchestrates fund movement across the two rails and the ledger.
type Service struct {
	store  ledger.Store
	users  *user.Service
	ngn    provider.NGNRail
	mc     provider.MulticurrencyRail
	tasks  TaskQueue
	locks  *KeyedMutex
	cfg    Config
	logger *slog.Logger
}

// NewService constructs the orchestrator.
func NewService(store ledger.Store, users *user.Service, ngn provider.NGNRail,
	mc provider.MulticurrencyRail, tasks TaskQueue, locks *KeyedMutex,
	cfg Config, logger *slog.Logger) *Service {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Service{
		store:  store,
		users:  users,
		ngn:    ngn,
		mc:     mc,
		tasks:  tasks,
		locks:  locks,
		cfg:    cfg,
		logger: logger,
	}
}

// BudgetRef tags a transaction with the budget and item it spends from.
type BudgetRef struct {
	BudgetID     string
	BudgetItemID string
}

// TransferInput captures a cross-user transfer request. Amounts are minor units.
type TransferInput struct {
	OwnerID                string
	PIN                    string
	Currency               string
	AmountMinor            int64
	RecipientAccountNumber string
	Narration              string
	Budget                 *BudgetRef
}

// WithdrawInput captures a withdrawal to an external bank account.
type WithdrawInput struct {
	OwnerID       string
	PIN           string
	Currency      string
	AmountMinor   int64
	AccountNumber string
	BankCode      string
	Narration     string
	Budget        *BudgetRef
}

// MovementResult describes the initiated movement. Status is always pending:
// the terminal state arrives later by webhook.
type MovementResult struct {
	TransactionID string
	Reference     string
	Status        ledger.Status
}

// BalanceResult carries both the invariant balance and the spendable balance.
type BalanceResult struct {
	Currency       string
	BalanceMinor   int64
	AvailableMinor int64
}

// Transfer moves funds to another wallet owner, identified by their account
// number. The whole initiate sequence is serialized per sender.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (MovementResult, error) {
	cur, err := currency.Normalize(input.Currency)
	if err != nil {
		return MovementResult{}, err
	}
	if err := s.checkLimits(cur, input.AmountMinor); err != nil {
		return MovementResult{}, err
	}
	if err := s.users.VerifyPIN(ctx, input.OwnerID, input.PIN); err != nil {
		return MovementResult{}, err
	}

	recipient, err := s.users.ByNGNAccountNumber(ctx, input.RecipientAccountNumber)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return MovementResult{}, ErrRecipientNotFound
		}
		return MovementResult{}, err
	}
	if recipient.ID == input.OwnerID {
		return MovementResult{}, ErrSelfTransfer
	}

	unlock := s.locks.Lock(input.OwnerID)
	defer unlock()

	if err := s.checkAvailable(ctx, input.OwnerID, cur, input.AmountMinor+s.cfg.TransferFeeMinor); err != nil {
		return MovementResult{}, err
	}

	tx := ledger.Transaction{
		Type:               ledger.TypeTransfer,
		Operation:          ledger.OperationDebit,
		Currency:           cur,
		AmountMinor:        input.AmountMinor,
		Status:             ledger.StatusPending,
		OriginatorAccount:  input.OwnerID,
		RecipientAccount:   recipient.ID,
		ProcessingFeeMinor: s.cfg.TransferFeeMinor,
		Comment:            input.Narration,
	}
	applyBudget(&tx, input.Budget)

	return s.initiate(ctx, tx, provider.TransferRequest{
		Reference:     uuid.NewString(),
		AmountMinor:   input.AmountMinor,
		Currency:      cur,
		AccountNumber: input.RecipientAccountNumber,
		Narration:     input.Narration,
		Counterparty:  recipient.Name,
	})
}

// Withdraw moves funds to an external bank account resolved on the rail.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (MovementResult, error) {
	cur, err := currency.Normalize(input.Currency)
	if err != nil {
		return MovementResult{}, err
	}
	if err := s.checkLimits(cur, input.AmountMinor); err != nil {
		return MovementResult{}, err
	}
	if err := s.users.VerifyPIN(ctx, input.OwnerID, input.PIN); err != nil {
		return MovementResult{}, err
	}

	resolved, err := s.resolveBeneficiary(ctx, cur, input.AccountNumber, input.BankCode)
	if err != nil {
		return MovementResult{}, err
	}

	unlock := s.locks.Lock(input.OwnerID)
	defer unlock()

	if err := s.checkAvailable(ctx, input.OwnerID, cur, input.AmountMinor+s.cfg.TransferFeeMinor); err != nil {
		return MovementResult{}, err
	}

	tx := ledger.Transaction{
		Type:               ledger.TypeWithdrawal,
		Operation:          ledger.OperationDebit,
		Currency:           cur,
		AmountMinor:        input.AmountMinor,
		Status:             ledger.StatusPending,
		OriginatorAccount:  input.OwnerID,
		ProcessingFeeMinor: s.cfg.TransferFeeMinor,
		Comment:            fmt.Sprintf("withdrawal to %s", resolved.AccountName),
	}
	applyBudget(&tx, input.Budget)

	return s.initiate(ctx, tx, provider.TransferRequest{
		Reference:     uuid.NewString(),
		AmountMinor:   input.AmountMinor,
		Currency:      cur,
		AccountNumber: input.AccountNumber,
		BankCode:      input.BankCode,
		Narration:     input.Narration,
		Counterparty:  resolved.AccountName,
	})
}

// initiate performs the provider call and writes the pending record. Provider
// business failures surface to the caller with no record written; transport
// and timeout failures are indeterminate, so the pending record is written
// under the client reference and left to webhook reconciliation.
func (s *Service) initiate(ctx context.Context, tx ledger.Transaction, req provider.TransferRequest) (MovementResult, error) {
	rail := s.railFor(tx.Currency)

	res, err := rail.Transfer(ctx, req)
	switch {
	case err == nil:
		tx.ExternalReference = res.Reference
	default:
		pe, ok := provider.AsError(err)
		if !ok || !pe.Indeterminate() {
			return MovementResult{}, err
		}
		s.logger.Warn("provider outcome indeterminate, recording pending",
			slog.String("reference", req.Reference),
			slog.Any("error", err))
		tx.ExternalReference = req.Reference
	}

	id, err := s.store.Append(ctx, tx)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			// Idempotent replay of an already-initiated movement.
			existing, findErr := s.store.FindByReference(ctx, tx.ExternalReference)
			if findErr != nil {
				return MovementResult{}, findErr
			}
			return MovementResult{TransactionID: existing.ID, Reference: existing.ExternalReference, Status: existing.Status}, nil
		}
		return MovementResult{}, err
	}

	if s.cfg.TransferFeeMinor > 0 && !tx.IsBudget {
		s.enqueueFee(ctx, tx)
	}

	return MovementResult{TransactionID: id, Reference: tx.ExternalReference, Status: ledger.StatusPending}, nil
}

// Balance reports funds for one currency. NGN routes to the live provider
// balance, which is authoritative for that rail; every other currency is
// aggregated from the local ledger.
func (s *Service) Balance(ctx context.Context, ownerID, cur string) (BalanceResult, error) {
	normalized, err := currency.Normalize(cur)
	if err != nil {
		return BalanceResult{}, err
	}

	if normalized == currency.NGN {
		u, err := s.users.Get(ctx, ownerID)
		if err != nil {
			return BalanceResult{}, err
		}
		live, err := s.ngn.Balance(ctx, u.NGNTrackingReference)
		if err != nil {
			return BalanceResult{}, err
		}
		return BalanceResult{Currency: normalized, BalanceMinor: live, AvailableMinor: live}, nil
	}

	balance, err := s.store.Balance(ctx, ownerID, normalized)
	if err != nil {
		return BalanceResult{}, err
	}
	available, err := s.store.AvailableBalance(ctx, ownerID, normalized)
	if err != nil {
		return BalanceResult{}, err
	}
	return BalanceResult{Currency: normalized, BalanceMinor: balance, AvailableMinor: available}, nil
}

// Statement lists the owner's transactions for a calendar month.
func (s *Service) Statement(ctx context.Context, ownerID string, month time.Month, year int) ([]ledger.Transaction, error) {
	return s.store.ListByPeriod(ctx, ownerID, month, year)
}

// MarkAbandoned transitions a stale pending transaction to abandoned. Admin
// operation for movements whose webhook never arrived.
func (s *Service) MarkAbandoned(ctx context.Context, reference string) (ledger.Transaction, error) {
	return s.store.Transition(ctx, reference, ledger.StatusAbandoned)
}

func (s *Service) railFor(cur string) interface {
	Transfer(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error)
} {
	if cur == currency.NGN {
		return s.ngn
	}
	return s.mc
}

func (s *Service) resolveBeneficiary(ctx context.Context, cur, accountNumber, bankCode string) (provider.ResolvedAccount, error) {
	if cur == currency.NGN {
		return s.ngn.ResolveAccount(ctx, accountNumber, bankCode)
	}
	return s.mc.ResolveAccount(ctx, accountNumber, bankCode, cur)
}

func (s *Service) checkLimits(cur string, amountMinor int64) error {
	if amountMinor <= 0 {
		return ledger.ErrInvalidAmount
	}
	limits, ok := s.cfg.Limits[cur]
	if !ok {
		return nil
	}
	if amountMinor < limits.MinMinor {
		return ErrAmountBelowMinimum
	}
	if limits.MaxMinor > 0 && amountMinor > limits.MaxMinor {
		return ErrAmountAboveMaximum
	}
	return nil
}

func (s *Service) checkAvailable(ctx context.Context, ownerID, cur string, requiredMinor int64) error {
	available, err := s.store.AvailableBalance(ctx, ownerID, cur)
	if err != nil {
		return err
	}
	if available < requiredMinor {
		return ErrInsufficientFunds
	}
	return nil
}

func applyBudget(tx *ledger.Transaction, ref *BudgetRef) {
	if ref == nil {
		return
	}
	tx.IsBudget = true
	tx.BudgetID = ref.BudgetID
	tx.BudgetItemID = ref.BudgetItemID
}

// feeTask is the payload for outbox fee-charge tasks.
type feeTask struct {
	Reference   string `json:"reference"`
	OwnerID     string `json:"owner_id"`
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
}

// enqueueFee queues the best-effort fee charge. Enqueue failure is logged and
// never surfaced: fee collection must not block the movement it prices.
func (s *Service) enqueueFee(ctx context.Context, tx ledger.Transaction) {
	task := feeTask{
		Reference:   tx.ExternalReference,
		OwnerID:     tx.OriginatorAccount,
		Currency:    tx.Currency,
		AmountMinor: tx.ProcessingFeeMinor,
	}
	if err := s.tasks.Enqueue(ctx, outbox.KindChargeFee, task); err != nil {
		s.logger.Error("enqueue fee charge failed",
			slog.String("reference", tx.ExternalReference),
			slog.Any("error", err))
	}
}

// HandleChargeFee is the outbox handler that collects a processing fee by
// moving it to the platform fee account on the NGN rail. Errors are returned
// so the outbox retries.
func (s *Service) HandleChargeFee(ctx context.Context, task outbox.Task) error {
	var payload feeTask
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decode fee task: %w", err)
	}
	if s.cfg.FeeAccountNumber == "" {
		return nil
	}

	feeRef := payload.Reference + "-fee"
	if _, err := s.store.FindByReference(ctx, feeRef); err == nil {
		return nil // already collected
	}

	_, err := s.ngn.Transfer(ctx, provider.TransferRequest{
		Reference:     feeRef,
		AmountMinor:   payload.AmountMinor,
		Currency:      currency.NGN,
		AccountNumber: s.cfg.FeeAccountNumber,
		BankCode:      s.cfg.FeeBankCode,
		Narration:     "processing fee",
	})
	if err != nil {
		return fmt.Errorf("charge fee for %s: %w", payload.Reference, err)
	}

	_, err = s.store.Append(ctx, ledger.Transaction{
		Type:              ledger.TypeWithdrawal,
		Operation:         ledger.OperationDebit,
		Currency:          payload.Currency,
		AmountMinor:       payload.AmountMinor,
		Status:            ledger.StatusSuccess,
		OriginatorAccount: payload.OwnerID,
		ExternalReference: feeRef,
		Comment:           "processing fee",
	})
	if errors.Is(err, ledger.ErrDuplicateReference) {
		return nil
	}
	return err
}
