// Package limits enforces per-trader trade limits for the reference host:
// a minimum reserve spend per buy and a cap on the tokens one trader may
// hold in a single curve.
package limits

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrBelowMinimumReserve is returned when a buy spends less reserve than
	// the configured minimum purchase.
	ErrBelowMinimumReserve = errors.New("limits: reserve below minimum purchase")

	// ErrHoldingLimitExceeded is returned when a buy would push a trader's
	// balance in one curve beyond the maximum holding.
	ErrHoldingLimitExceeded = errors.New("limits: holding limit exceeded")

	// ErrInsufficientTokens is returned when a trader sells more tokens than
	// they hold.
	ErrInsufficientTokens = errors.New("limits: insufficient tokens")
)

// TradeLimits holds the host's trade limits. A zero value disables the
// corresponding check.
type TradeLimits struct {
	// MinReserveIn is the smallest gross reserve amount accepted for a buy.
	MinReserveIn decimal.Decimal

	// MaxHolding is the largest token balance a trader may hold in a curve.
	MaxHolding decimal.Decimal
}

// New creates limits from a minimum purchase and a maximum holding.
func New(minReserveIn, maxHolding decimal.Decimal) *TradeLimits {
	return &TradeLimits{MinReserveIn: minReserveIn, MaxHolding: maxHolding}
}

// CheckBuy validates a buy that charges reserveIn and mints tokensOut to a
// trader currently holding held tokens.
func (l *TradeLimits) CheckBuy(reserveIn, tokensOut, held decimal.Decimal) error {
	if l.MinReserveIn.IsPositive() && reserveIn.LessThan(l.MinReserveIn) {
		return fmt.Errorf("%w: %s < %s", ErrBelowMinimumReserve, reserveIn, l.MinReserveIn)
	}
	if l.MaxHolding.IsPositive() {
		if next := held.Add(tokensOut); next.GreaterThan(l.MaxHolding) {
			return fmt.Errorf("%w: %s > %s", ErrHoldingLimitExceeded, next, l.MaxHolding)
		}
	}
	return nil
}

// CheckSell validates that a trader holding held tokens can burn tokensIn.
func (l *TradeLimits) CheckSell(tokensIn, held decimal.Decimal) error {
	if tokensIn.GreaterThan(held) {
		return fmt.Errorf("%w: selling %s, holding %s", ErrInsufficientTokens, tokensIn, held)
	}
	return nil
}
