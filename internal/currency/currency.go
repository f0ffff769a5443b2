package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupported indicates the currency code is not handled by any rail.
var ErrUnsupported = errors.New("unsupported currency")

// NGN is the only currency whose float is held at the virtual-account
// provider; every other currency is tracked purely through the local ledger.
const NGN = "NGN"

// exponents maps each supported ISO code to its minor-unit exponent.
// This package is the single conversion point between the major units used
// by the public API and the minor units used by both rails.
var exponents = map[string]int32{
	"NGN": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
}

// Normalize upper-cases and validates a currency code.
func Normalize(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if _, ok := exponents[c]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, code)
	}
	return c, nil
}

// Supported reports whether the code is a known currency.
func Supported(code string) bool {
	_, ok := exponents[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// ToMinor converts a major-unit decimal amount into minor units, truncating
// any precision beyond the currency's exponent.
func ToMinor(amount decimal.Decimal, code string) (int64, error) {
	exp, ok := exponents[strings.ToUpper(code)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupported, code)
	}
	return amount.Shift(exp).Truncate(0).IntPart(), nil
}

// FromMinor converts a minor-unit amount back into a major-unit decimal.
func FromMinor(minor int64, code string) (decimal.Decimal, error) {
	exp, ok := exponents[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, code)
	}
	return decimal.NewFromInt(minor).Shift(-exp), nil
}
