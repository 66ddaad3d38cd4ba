// Package token handles issued-token symbol validation and conversion of
// human-readable amounts to and from smallest units.
package token

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxDecimals bounds the unit exponent accepted by ParseUnits and FormatUnits.
const MaxDecimals = 36

// MaxNameLength is the longest display name accepted for a curve's token.
const MaxNameLength = 64

// symbolRegex matches an upper-case ticker of 2 to 11 characters.
// Example: VOLUME, PEPE2
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,10}$`)

var (
	ErrInvalidSymbol = errors.New("token: invalid symbol")
	ErrInvalidName   = errors.New("token: invalid name")
	ErrInvalidAmount = errors.New("token: invalid amount")
)

// ParseSymbol normalizes and validates a ticker symbol.
func ParseSymbol(raw string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(sym) {
		return "", fmt.Errorf("%w: %q (expected 2-11 characters A-Z0-9, starting with a letter)",
			ErrInvalidSymbol, raw)
	}
	return sym, nil
}

// ParseName trims and validates a token display name.
func ParseName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

// ParseUnits converts a whole-unit amount such as "1.5" into smallest units
// at the given number of decimals, so ParseUnits("1.5", 18) is 1.5e18.
// Amounts with more fractional digits than decimals are rejected rather than
// truncated.
func ParseUnits(amount string, decimals int32) (decimal.Decimal, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return decimal.Zero, fmt.Errorf("%w: decimals %d outside [0, %d]", ErrInvalidAmount, decimals, MaxDecimals)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	units := v.Shift(decimals)
	if !units.IsInteger() {
		return decimal.Zero, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}
	return decimal.NewFromBigInt(units.BigInt(), 0), nil
}

// FormatUnits renders a smallest-unit amount in whole units.
func FormatUnits(units decimal.Decimal, decimals int32) string {
	return units.Shift(-decimals).String()
}
