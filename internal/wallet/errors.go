package wallet

import "errors"

var (
	// ErrAmountBelowMinimum indicates the amount is under the configured
	// per-currency floor.
	ErrAmountBelowMinimum = errors.New("amount below minimum for currency")

	// ErrAmountAboveMaximum indicates the amount is over the configured
	// per-currency ceiling.
	ErrAmountAboveMaximum = errors.New("amount above maximum for currency")

	// ErrInsufficientFunds indicates the available balance cannot cover the
	// amount plus fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRecipientNotFound indicates no wallet owner matches the recipient
	// account number.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrSelfTransfer indicates the recipient resolves back to the sender.
	ErrSelfTransfer = errors.New("cannot transfer to own account")

	// ErrUnknownTransaction indicates a webhook event references no local
	// record. Logged by the reconciler, never fatal.
	ErrUnknownTransaction = errors.New("unknown transaction reference")
)
