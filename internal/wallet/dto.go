package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cowriepay/cowrie/internal/currency"
	"github.com/cowriepay/cowrie/internal/ledger"
)

// The public API speaks major units as decimal strings; everything behind the
// handler speaks minor units. Conversion happens here and nowhere else.

type transferRequest struct {
	Currency               string          `json:"currency" validate:"required,len=3"`
	Amount                 decimal.Decimal `json:"amount" validate:"required"`
	RecipientAccountNumber string          `json:"recipient_account_number" validate:"required,numeric"`
	PIN                    string          `json:"pin" validate:"required,len=4,numeric"`
	Narration              string          `json:"narration" validate:"max=140"`
}

type withdrawRequest struct {
	Currency      string          `json:"currency" validate:"required,len=3"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	AccountNumber string          `json:"account_number" validate:"required,numeric"`
	BankCode      string          `json:"bank_code" validate:"required"`
	PIN           string          `json:"pin" validate:"required,len=4,numeric"`
	Narration     string          `json:"narration" validate:"max=140"`
}

type movementResponse struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
}

type balanceResponse struct {
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
}

type transactionResponse struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Operation     string    `json:"operation"`
	Currency      string    `json:"currency"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	Reference     string    `json:"reference"`
	Comment       string    `json:"comment,omitempty"`
	ProcessingFee string    `json:"processing_fee,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newMovementResponse(res MovementResult) movementResponse {
	return movementResponse{
		TransactionID: res.TransactionID,
		Reference:     res.Reference,
		Status:        string(res.Status),
	}
}

func newBalanceResponse(res BalanceResult) (balanceResponse, error) {
	balance, err := currency.FromMinor(res.BalanceMinor, res.Currency)
	if err != nil {
		return balanceResponse{}, err
	}
	available, err := currency.FromMinor(res.AvailableMinor, res.Currency)
	if err != nil {
		return balanceResponse{}, err
	}
	return balanceResponse{
		Currency:  res.Currency,
		Balance:   balance.String(),
		Available: available.String(),
	}, nil
}

func newTransactionResponse(tx ledger.Transaction) transactionResponse {
	out := transactionResponse{
		ID:        tx.ID,
		Type:      string(tx.Type),
		Operation: string(tx.Operation),
		Currency:  tx.Currency,
		Status:    string(tx.Status),
		Reference: tx.ExternalReference,
		Comment:   tx.Comment,
		CreatedAt: tx.CreatedAt,
	}
	if amount, err := currency.FromMinor(tx.AmountMinor, tx.Currency); err == nil {
		out.Amount = amount.String()
	}
	if tx.ProcessingFeeMinor > 0 {
		if fee, err := currency.FromMinor(tx.ProcessingFeeMinor, tx.Currency); err == nil {
			out.ProcessingFee = fee.String()
		}
	}
	return out
}
