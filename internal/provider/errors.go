package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider interaction failure into the fixed taxonomy
// the orchestrator branches on. Business failures map to exactly one kind so
// no caller ever inspects raw provider codes.
type ErrorKind int

const (
	// KindBusiness is a structured provider failure with no finer mapping.
	KindBusiness ErrorKind = iota
	// KindInsufficientFunds means the provider-side float cannot cover the request.
	KindInsufficientFunds
	// KindInactiveAccount means the counterparty account is closed or dormant.
	KindInactiveAccount
	// KindLimitExceeded means a provider-side velocity or amount limit was hit.
	KindLimitExceeded
	// KindCancelled means the instruction was cancelled at the provider.
	KindCancelled
	// KindTimeout means the provider reported a processing timeout. The
	// operation outcome is indeterminate, as with transport failures.
	KindTimeout
	// KindTransport is a network-level failure before any provider verdict.
	// The operation must not be assumed failed.
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindBusiness:
		return "business"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindInactiveAccount:
		return "inactive_account"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindCancelled:
		return "cancelled"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a typed provider failure. Business kinds carry the provider's
// response code; transport kinds wrap the underlying network error.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

// NewBusinessError builds a provider Error for a structured failure response.
func NewBusinessError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewTransportError wraps a network-level failure whose outcome is indeterminate.
func NewTransportError(cause error) *Error {
	return &Error{Kind: KindTransport, Message: "provider unreachable", cause: cause}
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider %s (%s): %s", e.Kind, e.Code, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("provider %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Indeterminate reports whether the outcome of the call cannot be known
// locally. Such failures must be left to webhook reconciliation rather than
// recorded as failed.
func (e *Error) Indeterminate() bool {
	return e.Kind == KindTransport || e.Kind == KindTimeout
}

// AsError extracts a provider Error when err carries one.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
