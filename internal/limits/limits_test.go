package limits

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCheckBuy_WithinLimits(t *testing.T) {
	l := New(d("1000"), d("5000"))
	assert.NoError(t, l.CheckBuy(d("1000"), d("100"), d("4900")))
}

func TestCheckBuy_BelowMinimum(t *testing.T) {
	l := New(d("1000"), d("5000"))
	assert.ErrorIs(t, l.CheckBuy(d("999"), d("1"), decimal.Zero), ErrBelowMinimumReserve)
}

func TestCheckBuy_HoldingExceeded(t *testing.T) {
	l := New(d("1000"), d("5000"))
	// 4950 held + 100 bought = 5050 > 5000.
	assert.ErrorIs(t, l.CheckBuy(d("2000"), d("100"), d("4950")), ErrHoldingLimitExceeded)
}

func TestCheckBuy_ZeroDisablesLimits(t *testing.T) {
	l := &TradeLimits{}
	assert.NoError(t, l.CheckBuy(d("1"), d("1000000000000000000000000000"), d("1")))
}

func TestCheckSell(t *testing.T) {
	l := New(decimal.Zero, decimal.Zero)
	assert.NoError(t, l.CheckSell(d("100"), d("100")))
	assert.ErrorIs(t, l.CheckSell(d("101"), d("100")), ErrInsufficientTokens)
}
