package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowriepay/cowrie/internal/ledger"
	"github.com/cowriepay/cowrie/internal/outbox"
)

func TestReconcileSettlesPendingTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 200_000)

	res, err := env.svc.Transfer(ctx, TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	require.NoError(t, err)

	out, err := env.svc.Reconcile(ctx, Event{
		Reference:   res.Reference,
		Direction:   DirectionDebit,
		AmountMinor: 50_000,
		Currency:    "NGN",
	})
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Equal(t, ledger.StatusSuccess, out.Transaction.Status)
	assert.Equal(t, env.recipient.Name, out.CounterpartName)

	// A redelivered event is a no-op.
	out, err = env.svc.Reconcile(ctx, Event{
		Reference:   res.Reference,
		Direction:   DirectionDebit,
		AmountMinor: 50_000,
		Currency:    "NGN",
	})
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.Equal(t, ledger.StatusSuccess, out.Transaction.Status)
}

func TestReconcileMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger.SeedFunds(env.store, env.sender.ID, "NGN", 200_000)

	res, err := env.svc.Transfer(ctx, TransferInput{
		OwnerID:                env.sender.ID,
		PIN:                    "4321",
		Currency:               "NGN",
		AmountMinor:            50_000,
		RecipientAccountNumber: env.recipient.NGNAccountNumber,
	})
	require.NoError(t, err)

	out, err := env.svc.Reconcile(ctx, Event{
		Reference: res.Reference,
		Direction: DirectionDebit,
		Failed:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, out.Transaction.Status)

	// Failed debits release the held amount.
	bal, err := env.store.AvailableBalance(ctx, env.sender.ID, "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(200_000), bal)
}

func TestReconcileUnsolicitedDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.svc.Reconcile(ctx, Event{
		Reference:     "ext-dep-1",
		Direction:     DirectionCredit,
		AmountMinor:   75_000,
		Currency:      "NGN",
		AccountNumber: env.sender.NGNAccountNumber,
		Narration:     "salary",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeFunding, out.Transaction.Type)
	assert.Equal(t, ledger.StatusSuccess, out.Transaction.Status)

	bal, err := env.store.Balance(ctx, env.sender.ID, "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(75_000), bal)
	assert.Equal(t, 1, env.queue.countKind(outbox.KindNotify))

	// Redelivery of the same deposit credits nothing.
	out, err = env.svc.Reconcile(ctx, Event{
		Reference:     "ext-dep-1",
		Direction:     DirectionCredit,
		AmountMinor:   75_000,
		Currency:      "NGN",
		AccountNumber: env.sender.NGNAccountNumber,
	})
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	bal, err = env.store.Balance(ctx, env.sender.ID, "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(75_000), bal)
}

func TestReconcileDepositUnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Reconcile(context.Background(), Event{
		Reference:     "ext-dep-2",
		Direction:     DirectionCredit,
		AmountMinor:   10_000,
		Currency:      "NGN",
		AccountNumber: "9999999999",
	})
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestReconcileUnknownDebit(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Reconcile(context.Background(), Event{
		Reference: "never-initiated",
		Direction: DirectionDebit,
	})
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}
