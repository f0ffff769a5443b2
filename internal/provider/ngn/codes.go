package ngn

import "github.com/cowriepay/cowrie/internal/provider"

// Numeric response codes returned by the virtual-account provider.
const (
	codeSuccess           = "00"
	codeInsufficientFunds = "06"
	codeInactiveAccount   = "07"
	codeCancelled         = "17"
	codeDebitFailed       = "51"
	codeLimitExceeded     = "61"
	codeTimeout           = "91"
)

// kindForCode maps every documented provider response code to an ErrorKind.
// Undocumented codes fall through to the generic business kind so the caller
// still gets a typed failure.
func kindForCode(code string) provider.ErrorKind {
	switch code {
	case codeInsufficientFunds, codeDebitFailed:
		return provider.KindInsufficientFunds
	case codeInactiveAccount:
		return provider.KindInactiveAccount
	case codeLimitExceeded:
		return provider.KindLimitExceeded
	case codeCancelled:
		return provider.KindCancelled
	case codeTimeout:
		return provider.KindTimeout
	default:
		return provider.KindBusiness
	}
}
