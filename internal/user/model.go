package user

import "time"

// User represents a registered wallet owner together with the provider-side
// references the rails need to move money on their behalf.
type User struct {
	ID    string
	Name  string
	Email string
	// PINHash is the bcrypt hash of the transaction PIN that authorizes
	// every outbound money movement.
	PINHash []byte
	// NGNAccountNumber is the virtual account number assigned by the NGN
	// rail. Inbound NGN deposits are matched to a user through it.
	NGNAccountNumber string
	// NGNTrackingReference identifies the user's float account at the NGN
	// rail for balance queries and debits.
	NGNTrackingReference string
	// MulticurrencyCustomerID is the processor-side customer identifier
	// sub-accounts are opened under.
	MulticurrencyCustomerID string
	CreatedAt               time.Time
}
