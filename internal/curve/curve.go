// Package curve implements the power-law bonding curve that converts between
// a reserve asset and a continuously issued token.
//
// With supply S, reserve R and connector weight w = ppm / 1_000_000:
//
//	tokens for deposit D   = S * ((1 + D/R)^w - 1)
//	reserve for sale of T  = R * (1 - (1 - T/S)^(1/w))
//
// w = 1 is the linear special case and is computed exactly on integers.
//
// Rounding is asymmetric so the curve never loses value to round trips:
// amounts paid out to the caller are floored, amounts required from the
// caller are ceiled. Each evaluation is repeated at a higher working
// precision when its result is too large for the configured one, so the
// rounding direction holds up to 2^256 - 1. The Calculator is stateless;
// every call receives its own snapshot and it is safe for concurrent use.
package curve

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
	"github.com/volumefi/curve-engine/internal/precision"
)

var (
	ppmScale = decimal.NewFromInt(model.PPMScale)

	// SpotPriceScale is the number of decimal places of SpotPrice.
	SpotPriceScale int32 = 18
)

// Calculator evaluates the curve at a fixed working precision.
type Calculator struct {
	prec precision.Context
}

// NewCalculator creates a calculator using prec for all transcendental math.
func NewCalculator(prec precision.Context) *Calculator {
	return &Calculator{prec: prec}
}

// Precision returns the calculator's working precision.
func (c *Calculator) Precision() precision.Context {
	return c.prec
}

// TokensForDeposit returns the tokens minted for depositing reserve into the
// curve, rounded down.
func (c *Calculator) TokensForDeposit(st model.CurveState, deposit decimal.Decimal) (decimal.Decimal, error) {
	if err := st.Validate(); err != nil {
		return decimal.Zero, err
	}
	if err := model.ValidateAmount("deposit", deposit); err != nil {
		return decimal.Zero, err
	}
	if deposit.IsZero() || st.TotalSupply.IsZero() {
		return decimal.Zero, nil
	}
	if st.IsLinear() {
		return precision.MulDiv(st.TotalSupply, deposit, st.ReserveBalance, precision.RoundDown)
	}

	return c.integer(precision.RoundDown, func(p precision.Context) (decimal.Decimal, error) {
		x, err := p.Quo(deposit, st.ReserveBalance)
		if err != nil {
			return decimal.Zero, err
		}
		g, err := p.Pow1pm1(x, st.Weight())
		if err != nil {
			return decimal.Zero, err
		}
		return st.TotalSupply.Mul(g), nil
	})
}

// ReserveForSale returns the reserve released for burning tokensIn, rounded
// down. Selling more than the current supply is rejected.
func (c *Calculator) ReserveForSale(st model.CurveState, tokensIn decimal.Decimal) (decimal.Decimal, error) {
	if err := c.checkSale(st, tokensIn); err != nil {
		return decimal.Zero, err
	}
	switch {
	case tokensIn.IsZero():
		return decimal.Zero, nil
	case tokensIn.Equal(st.TotalSupply):
		return st.ReserveBalance, nil
	case st.IsLinear():
		return precision.MulDiv(st.ReserveBalance, tokensIn, st.TotalSupply, precision.RoundDown)
	}

	return c.integer(precision.RoundDown, func(p precision.Context) (decimal.Decimal, error) {
		x, err := p.Quo(tokensIn, st.TotalSupply)
		if err != nil {
			return decimal.Zero, err
		}
		g, err := inversePow1pm1(p, x.Neg(), st.ConnectorWeightPPM)
		if err != nil {
			return decimal.Zero, err
		}
		// g = (1 - T/S)^(1/w) - 1 is in (-1, 0).
		return st.ReserveBalance.Mul(g.Neg()), nil
	})
}

// BuyPrice returns the reserve required to mint exactly tokensWanted, rounded
// up. It is the closed-form inverse of TokensForDeposit.
func (c *Calculator) BuyPrice(st model.CurveState, tokensWanted decimal.Decimal) (decimal.Decimal, error) {
	if err := st.Validate(); err != nil {
		return decimal.Zero, err
	}
	if err := model.ValidateAmount("tokens wanted", tokensWanted); err != nil {
		return decimal.Zero, err
	}
	if tokensWanted.IsZero() {
		return decimal.Zero, nil
	}
	if st.IsLinear() {
		return precision.MulDiv(st.ReserveBalance, tokensWanted, st.TotalSupply, precision.RoundUp)
	}

	return c.integer(precision.RoundUp, func(p precision.Context) (decimal.Decimal, error) {
		x, err := p.Quo(tokensWanted, st.TotalSupply)
		if err != nil {
			return decimal.Zero, err
		}
		g, err := inversePow1pm1(p, x, st.ConnectorWeightPPM)
		if err != nil {
			return decimal.Zero, err
		}
		return st.ReserveBalance.Mul(g), nil
	})
}

// SellPrice returns the reserve returned for tokensOffered, rounded down.
func (c *Calculator) SellPrice(st model.CurveState, tokensOffered decimal.Decimal) (decimal.Decimal, error) {
	return c.ReserveForSale(st, tokensOffered)
}

// TokensForWithdrawal returns the tokens that must be burned to release
// reserveWanted, rounded up. It is the closed-form inverse of ReserveForSale.
func (c *Calculator) TokensForWithdrawal(st model.CurveState, reserveWanted decimal.Decimal) (decimal.Decimal, error) {
	if err := st.Validate(); err != nil {
		return decimal.Zero, err
	}
	if err := model.ValidateAmount("reserve wanted", reserveWanted); err != nil {
		return decimal.Zero, err
	}
	if reserveWanted.GreaterThan(st.ReserveBalance) {
		return decimal.Zero, fmt.Errorf("%w: withdrawal %s exceeds reserve %s",
			model.ErrInvalidParameter, reserveWanted, st.ReserveBalance)
	}
	switch {
	case reserveWanted.IsZero():
		return decimal.Zero, nil
	case reserveWanted.Equal(st.ReserveBalance):
		return st.TotalSupply, nil
	case st.IsLinear():
		return precision.MulDiv(st.TotalSupply, reserveWanted, st.ReserveBalance, precision.RoundUp)
	}

	return c.integer(precision.RoundUp, func(p precision.Context) (decimal.Decimal, error) {
		x, err := p.Quo(reserveWanted, st.ReserveBalance)
		if err != nil {
			return decimal.Zero, err
		}
		g, err := p.Pow1pm1(x.Neg(), st.Weight())
		if err != nil {
			return decimal.Zero, err
		}
		return st.TotalSupply.Mul(g.Neg()), nil
	})
}

// SpotPrice returns the marginal reserve per token smallest unit, R / (w S).
func (c *Calculator) SpotPrice(st model.CurveState) (decimal.Decimal, error) {
	if err := st.Validate(); err != nil {
		return decimal.Zero, err
	}
	p, err := c.prec.Quo(st.ReserveBalance.Mul(ppmScale),
		st.TotalSupply.Mul(decimal.NewFromInt(int64(st.ConnectorWeightPPM))))
	if err != nil {
		return decimal.Zero, err
	}
	return p.Round(SpotPriceScale), nil
}

// integer evaluates f at the calculator's precision and rounds the result
// with mode. When the result carries more integer digits than that
// precision resolves, f is evaluated again at the precision the result
// needs.
func (c *Calculator) integer(mode precision.RoundingMode, f func(precision.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	p := c.prec
	x, err := f(p)
	if err != nil {
		return decimal.Zero, err
	}
	if need := precision.RequiredDigits(x); need > p.Digits() {
		// One extra digit covers a magnitude that moves between the passes.
		p = p.WithDigits(need + 1)
		if x, err = f(p); err != nil {
			return decimal.Zero, err
		}
	}
	return p.ToInteger(x, mode)
}

// inversePow1pm1 returns (1+x)^(1/w) - 1 for w given in ppm.
func inversePow1pm1(p precision.Context, x decimal.Decimal, ppm uint32) (decimal.Decimal, error) {
	l, err := p.Log1p(x)
	if err != nil {
		return decimal.Zero, err
	}
	// l / w = l * 1e6 / ppm, one rounding.
	y, err := p.Quo(l.Mul(ppmScale), decimal.NewFromInt(int64(ppm)))
	if err != nil {
		return decimal.Zero, err
	}
	return p.Expm1(y)
}

func (c *Calculator) checkSale(st model.CurveState, tokensIn decimal.Decimal) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := model.ValidateAmount("tokens in", tokensIn); err != nil {
		return err
	}
	if tokensIn.GreaterThan(st.TotalSupply) {
		return fmt.Errorf("%w: selling %s tokens exceeds supply %s",
			model.ErrInvalidParameter, tokensIn, st.TotalSupply)
	}
	return nil
}
