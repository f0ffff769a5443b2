// Package budget implements envelope budgeting on top of provider
// sub-accounts: a budget holds a funded ceiling, items partition it, and
// every spend is checked against both ceilings before any money moves.
package budget

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("budget not found")
	// ErrItemNotFound indicates the item does not belong to the budget.
	ErrItemNotFound = errors.New("budget item not found")
	// ErrInsufficientBudgetFunds indicates the spend would push the budget
	// past its total ceiling.
	ErrInsufficientBudgetFunds = errors.New("insufficient budget funds")
	// ErrInsufficientItemFunds indicates the spend would push the item past
	// its allocation.
	ErrInsufficientItemFunds = errors.New("insufficient budget item funds")
	// ErrOverAllocated indicates item allocations exceed the budget total.
	ErrOverAllocated = errors.New("item allocations exceed budget total")
)

// Budget is a funded spending envelope backed by a provider sub-account.
// Amounts are minor units. Invariant: SpentMinor <= TotalMinor.
type Budget struct {
	ID                   string
	OwnerID              string
	Name                 string
	Currency             string
	TotalMinor           int64
	SpentMinor           int64
	ExternalSubAccountID string
	CreatedAt            time.Time
}

// Item is a named allocation inside a budget.
// Invariant: SpentMinor <= AllocatedMinor.
type Item struct {
	ID             string
	BudgetID       string
	Name           string
	AllocatedMinor int64
	SpentMinor     int64
}

// RemainingMinor reports how much the budget can still spend.
func (b Budget) RemainingMinor() int64 {
	return b.TotalMinor - b.SpentMinor
}

// RemainingMinor reports how much the item can still spend.
func (i Item) RemainingMinor() int64 {
	return i.AllocatedMinor - i.SpentMinor
}
