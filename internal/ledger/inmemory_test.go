package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRejectsDuplicateReference(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	tx := Transaction{
		Type:              TypeTransfer,
		Operation:         OperationDebit,
		Currency:          "NGN",
		AmountMinor:       50000,
		Status:            StatusPending,
		OriginatorAccount: "user-1",
		ExternalReference: "ref-1",
	}

	_, err := store.Append(ctx, tx)
	require.NoError(t, err)

	_, err = store.Append(ctx, tx)
	assert.ErrorIs(t, err, ErrDuplicateReference)
}

func TestAppendRejectsInvalidAmount(t *testing.T) {
	store := NewInMemory()
	_, err := store.Append(context.Background(), Transaction{
		Currency:          "NGN",
		AmountMinor:       0,
		Status:            StatusPending,
		ExternalReference: "ref-zero",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// The balance for an account and currency must always equal the sum of
// success-state credits minus the sum of success-state debits, whatever the
// interleaving of records.
func TestBalanceInvariantOverRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []Status{StatusSuccess, StatusPending, StatusFailed, StatusReversed}

	for round := 0; round < 20; round++ {
		store := NewInMemory()
		ctx := context.Background()
		account := "acct"

		var expected int64
		for i := 0; i < 200; i++ {
			amount := rng.Int63n(100000) + 1
			status := statuses[rng.Intn(len(statuses))]
			credit := rng.Intn(2) == 0

			tx := Transaction{
				Type:              TypeTransfer,
				Currency:          "USD",
				AmountMinor:       amount,
				Status:            status,
				ExternalReference: fmt.Sprintf("r%d-%d", round, i),
			}
			if credit {
				tx.Operation = OperationCredit
				tx.RecipientAccount = account
				tx.OriginatorAccount = "peer"
			} else {
				tx.Operation = OperationDebit
				tx.OriginatorAccount = account
				tx.RecipientAccount = "peer"
			}

			_, err := store.Append(ctx, tx)
			require.NoError(t, err)

			if status == StatusSuccess {
				if credit {
					expected += amount
				} else {
					expected -= amount
				}
			}
		}

		balance, err := store.Balance(ctx, account, "USD")
		require.NoError(t, err)
		assert.Equal(t, expected, balance, "round %d", round)
	}
}

func TestAvailableBalanceCountsPendingDebits(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	SeedFunds(store, "user-1", "NGN", 100000)

	_, err := store.Append(ctx, Transaction{
		Type:              TypeTransfer,
		Operation:         OperationDebit,
		Currency:          "NGN",
		AmountMinor:       30000,
		Status:            StatusPending,
		OriginatorAccount: "user-1",
		ExternalReference: "pending-debit",
	})
	require.NoError(t, err)

	// Pending credits must never count.
	_, err = store.Append(ctx, Transaction{
		Type:              TypeFunding,
		Operation:         OperationCredit,
		Currency:          "NGN",
		AmountMinor:       999999,
		Status:            StatusPending,
		RecipientAccount:  "user-1",
		ExternalReference: "pending-credit",
	})
	require.NoError(t, err)

	balance, err := store.Balance(ctx, "user-1", "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)

	available, err := store.AvailableBalance(ctx, "user-1", "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(70000), available)
}

func TestBalanceIsCurrencyScoped(t *testing.T) {
	store := NewInMemory()
	SeedFunds(store, "user-1", "NGN", 5000)
	SeedFunds(store, "user-1", "USD", 750)

	ngn, err := store.Balance(context.Background(), "user-1", "NGN")
	require.NoError(t, err)
	usd, err := store.Balance(context.Background(), "user-1", "USD")
	require.NoError(t, err)

	assert.Equal(t, int64(5000), ngn)
	assert.Equal(t, int64(750), usd)
}

func TestTransitionTerminalGuard(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	_, err := store.Append(ctx, Transaction{
		Type:              TypeTransfer,
		Operation:         OperationDebit,
		Currency:          "NGN",
		AmountMinor:       1000,
		Status:            StatusPending,
		OriginatorAccount: "user-1",
		ExternalReference: "ref-t",
	})
	require.NoError(t, err)

	tx, err := store.Transition(ctx, "ref-t", StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, tx.Status)

	// Redelivery: the record stays success and the caller learns it was final.
	tx, err = store.Transition(ctx, "ref-t", StatusFailed)
	assert.ErrorIs(t, err, ErrAlreadyFinal)
	assert.Equal(t, StatusSuccess, tx.Status)

	_, err = store.Transition(ctx, "missing", StatusSuccess)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByPeriod(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	jan := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 2, 0, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{jan, jan.AddDate(0, 0, 1), feb} {
		_, err := store.Append(ctx, Transaction{
			Type:              TypeTransfer,
			Operation:         OperationCredit,
			Currency:          "NGN",
			AmountMinor:       1000,
			Status:            StatusSuccess,
			RecipientAccount:  "user-1",
			ExternalReference: fmt.Sprintf("period-%d", i),
			CreatedAt:         ts,
		})
		require.NoError(t, err)
	}

	txs, err := store.ListByPeriod(ctx, "user-1", time.January, 2025)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}
