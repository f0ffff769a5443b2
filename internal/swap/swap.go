// Package swap converts balances between currencies through the
// multi-currency rail. Quotes are time-boxed and single-use: a quote can be
// executed exactly once before it expires.
package swap

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrQuoteNotFound = errors.New("swap quote not found")
	// ErrQuoteAlreadyConsumed indicates the one-shot guard already fired.
	ErrQuoteAlreadyConsumed = errors.New("swap quote already consumed")
	ErrQuoteExpired         = errors.New("swap quote expired")
	// ErrSameCurrency indicates source and target are the same.
	ErrSameCurrency = errors.New("source and target currency are the same")
)

// Quote is a priced, time-boxed currency conversion offer.
type Quote struct {
	Reference         string
	OwnerID           string
	SourceCurrency    string
	SourceAmountMinor int64
	TargetCurrency    string
	TargetAmountMinor int64
	Rate              decimal.Decimal
	// IsInitiated flips to true exactly once, at execution.
	IsInitiated bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the quote is past its validity window.
func (q Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
