package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/provider"
	"github.com/cowriepay/cowrie/internal/user"
)

func TestTransferWritesPendingRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 200_000)

	res, err := env.svc.Transfer(ctx, TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
		Narration:              "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, res.Status)

	tx, err := env.store.FindByReference(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeTransfer, tx.Type)
	assert.Equal(t, ledger.OperationDebit, tx.Operation)
	assert.Equal(t, env.sender.ID, tx.OriginatorAccount)
	assert.Equal(t, env.recipient.ID, tx.RecipientAccount)
	assert.Equal(t, int64(50_000), tx.AmountMinor)

	assert.Equal(t, 1, env.ngn.transferCount())
	assert.Equal(t, 1, env.queue.countKind(outbox.KindChargeFee))
}

func TestTransferRejectsWrongPIN(t *testing.T) {
	env := newTestEnv(t)
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 200_000)

	_, err := env.svc.Transfer(context.Background(), TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "0000",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	assert.ErrorIs(t, err, user.ErrInvalidPIN)
	assert.Zero(t, env.ngn.transferCount())
}

// An unsupported currency must be rejected before any provider call is made.
func TestWithdrawRejectsUnsupportedCurrency(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Withdraw(context.Background(), WithdrawInput{
		OwnerID:       env.sender.ID,
		PIN:           "4321",
		Currency:      "XYZ",
		AmountMinor:   50_000,
		AccountNumber: "0123456789",
		BankCode:      "058",
	})
	assert.ErrorIs(t, err, currency.ErrUnsupported)
	assert.Zero(t, env.ngn.transferCount())
	assert.Zero(t, env.mc.transferCount())
}

func TestTransferLimits(t *testing.T) {
	env := newTestEnv(t)
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 1_000_000_000)

	_, err := env.svc.Transfer(context.Background(), TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            5_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	assert.ErrorIs(t, err, ErrAmountBelowMinimum)

	_, err = env.svc.Transfer(context.Background(), TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            600_000_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	assert.ErrorIs(t, err, ErrAmountAboveMaximum)
	assert.Zero(t, env.ngn.transferCount())
}

func TestTransferRecipientChecks(t *testing.T) {
	env := newTestEnv(t)
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 200_000)

	_, err := env.svc.Transfer(context.Background(), TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: "0000000000",
	})
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = env.svc.Transfer(context.Background(), TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: env.sender.NGNAccountNumber,
	})
	assert.ErrorIs(t, err, ErrSelfTransfer)
}

func TestTransferInsufficientAvailableBalance(t *testing.T) {
	env := newTestEnv(t)
	// 60,000 on hand but a 40,000 pending debit is already in flight.
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 60_000)
	_, err := env.store.Append(context.Background(), ledger.Transaction{
		Type:              ledger.TypeTransfer,
		Operation:         ledger.OperationDebit,
		Currency:          "NGN",
		AmountMinor:       40_000,
		Status:            ledger.StatusPending,
		OriginatorAccount: env.sender.ID,
		ExternalReference: "in-flight",
	})
	require.NoError(t, err)

	_, err = env.svc.Transfer(context.Background(), TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            18_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Zero(t, env.ngn.transferCount())
}

// A structured provider rejection leaves no local record.
func TestTransferProviderBusinessFailure(t *testing.T) {
	env := newTestEnv(t)
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 200_000)
	env.ngn.transferErr = provider.NewBusinessError(provider.KindInsufficientFunds, "06", "insufficient float")

	_, err := env.svc.Transfer(context.Background(), TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	pe, ok := provider.AsError(err)
	require.True(t, ok)
	assert.Equal(t, provider.KindInsufficientFunds, pe.Kind)

	txs, err := env.store.ListByPeriod(context.Background(), env.sender.ID, timeNowMonth(), timeNowYear())
	require.NoError(t, err)
	for _, tx := range txs {
		assert.NotEqual(t, ledger.TypeTransfer, tx.Type)
	}
	assert.Zero(t, env.queue.countKind(outbox.KindChargeFee))
}

// A transport failure is indeterminate: the pending record is still written
// under the client reference so webhook reconciliation can settle it.
func TestTransferIndeterminateOutcome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 200_000)
	env.ngn.transferErr = provider.NewTransportError(assert.AnError)

	res, err := env.svc.Transfer(ctx, TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, res.Status)

	tx, err := env.store.FindByReference(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, tx.Status)
}

func TestBalanceRouting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ngn.balanceMinor = 123_456
	ledger.SeedFunds(env.store, env.sender.ID, "USD", 9_900)

	// NGN is authoritative at the provider.
	res, err := env.svc.Balance(ctx, env.sender.ID, "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(123_456), res.BalanceMinor)

	// Everything else aggregates the local ledger.
	res, err = env.svc.Balance(ctx, env.sender.ID, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(9_900), res.BalanceMinor)
	assert.Equal(t, int64(9_900), res.AvailableMinor)
}

func TestMarkAbandoned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.store.Append(ctx, ledger.Transaction{
		Type:              ledger.TypeTransfer,
		Operation:         ledger.OperationDebit,
		Currency:          "NGN",
		AmountMinor:       10_000,
		Status:            ledger.StatusPending,
		OriginatorAccount: env.sender.ID,
		ExternalReference: "stale-ref",
	})
	require.NoError(t, err)

	tx, err := env.svc.MarkAbandoned(ctx, "stale-ref")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusAbandoned, tx.Status)

	// Terminal: a late webhook can no longer flip it.
	tx, err = env.store.Transition(ctx, "stale-ref", ledger.StatusSuccess)
	assert.ErrorIs(t, err, ledger.ErrAlreadyFinal)
	assert.Equal(t, ledger.StatusAbandoned, tx.Status)
}
