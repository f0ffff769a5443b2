// Package provider defines the capability interfaces for the two external
// banking rails. Clients never mutate local state: they return data the
// orchestrator persists.
package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// TransferRequest instructs a rail to move funds to a beneficiary account.
// Amounts are always minor units at this boundary.
type TransferRequest struct {
	Reference     string // client-generated idempotency key
	AmountMinor   int64
	Currency      string
	AccountNumber string
	BankCode      string
	Narration     string
	Counterparty  string // beneficiary display name, where known
}

// TransferResult carries the provider-assigned reference for the movement.
// Webhook events correlate on this reference.
type TransferResult struct {
	Reference string
}

// ResolvedAccount is the outcome of a beneficiary account enquiry.
type ResolvedAccount struct {
	AccountNumber string
	AccountName   string
	BankCode      string
}

// Institution describes a destination bank on a rail.
type Institution struct {
	Name string
	Code string
}

// FXQuote is a provider-side exchange quote between two currencies.
type FXQuote struct {
	Reference         string
	Rate              decimal.Decimal
	SourceAmountMinor int64
	TargetAmountMinor int64
}

// NGNRail abstracts the naira virtual-account provider. Balances for NGN are
// authoritative at the provider since its float has no local mirror.
type NGNRail interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	Balance(ctx context.Context, trackingReference string) (int64, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (ResolvedAccount, error)
	Institutions(ctx context.Context) ([]Institution, error)
}

// MulticurrencyRail abstracts the multi-currency processor, including the
// sub-accounts backing budgets and the FX operations backing swaps.
type MulticurrencyRail interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode, currency string) (ResolvedAccount, error)
	Institutions(ctx context.Context, currency string) ([]Institution, error)

	CreateSubAccount(ctx context.Context, customerID, currency string) (string, error)
	FundSubAccount(ctx context.Context, subAccountID string, amountMinor int64, reference string) error
	WithdrawSubAccount(ctx context.Context, subAccountID string, amountMinor int64, reference string) error

	QuoteFX(ctx context.Context, sourceCurrency, targetCurrency string, sourceAmountMinor int64) (FXQuote, error)
	ExecuteFX(ctx context.Context, quoteReference string) (string, error)
}
