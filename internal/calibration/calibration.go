// Package calibration derives a curve's connector weight from two anchor
// observations: the token return a given deposit should buy at a fresh
// curve seeded with the virtual supply S0 and virtual reserve C0.
//
//	weightPpm = round_half_up( ln(R/S0 + 1) / ln(D/C0 + 1) * 1_000_000 )
//
// Weights outside (0, 1_000_000] do not describe a concave, increasing price
// curve and are rejected, never clamped.
package calibration

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
	"github.com/volumefi/curve-engine/internal/precision"
)

var ppmScale = decimal.NewFromInt(model.PPMScale)

// Calibrate returns the connector weight in ppm for the given anchors.
func Calibrate(prec precision.Context, a model.CalibrationAnchors) (uint32, error) {
	if err := validate(a); err != nil {
		return 0, err
	}

	supplyRatio, err := prec.Quo(a.TargetReturn, a.VirtualSupply)
	if err != nil {
		return 0, err
	}
	num, err := prec.Log1p(supplyRatio)
	if err != nil {
		return 0, err
	}

	reserveRatio, err := prec.Quo(a.DepositAmount, a.VirtualReserve)
	if err != nil {
		return 0, err
	}
	den, err := prec.Log1p(reserveRatio)
	if err != nil {
		return 0, err
	}

	ratio, err := prec.Quo(num.Mul(ppmScale), den)
	if err != nil {
		return 0, err
	}
	w, err := prec.ToInteger(ratio, precision.RoundHalfUp)
	if err != nil {
		return 0, err
	}

	if !w.IsPositive() || w.GreaterThan(ppmScale) {
		return 0, fmt.Errorf("%w: calibrated weight %s ppm outside (0, %d]",
			model.ErrInvalidParameter, w, model.PPMScale)
	}
	return uint32(w.IntPart()), nil
}

func validate(a model.CalibrationAnchors) error {
	fields := []struct {
		name string
		v    decimal.Decimal
	}{
		{"target return", a.TargetReturn},
		{"deposit amount", a.DepositAmount},
		{"virtual supply", a.VirtualSupply},
		{"virtual reserve", a.VirtualReserve},
	}
	for _, f := range fields {
		if !f.v.IsPositive() {
			return fmt.Errorf("%w: %s must be positive, got %s", model.ErrInvalidParameter, f.name, f.v)
		}
	}
	return nil
}
