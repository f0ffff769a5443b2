package ledger

import (
	"context"
	"fmt"
)

// SeedFunds is a test helper that credits an account with a success-state
// funding record so balance assertions have a known starting point.
func SeedFunds(s Store, account, currency string, amountMinor int64) {
	_, err := s.Append(context.Background(), Transaction{
		Type:              TypeFunding,
		Operation:         OperationCredit,
		Currency:          currency,
		AmountMinor:       amountMinor,
		Status:            StatusSuccess,
		RecipientAccount:  account,
		ExternalReference: fmt.Sprintf("seed-%s-%s-%d", account, currency, amountMinor),
	})
	if err != nil {
		panic(fmt.Sprintf("seed funds: %v", err))
	}
}
