// Package fee applies the host-configured trading fee to raw curve amounts.
//
// Fees are always rounded in the curve's favour: a buyer pays at least the
// raw price plus the fee, a seller receives at most the raw payout minus it.
package fee

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
	"github.com/volumefi/curve-engine/internal/precision"
)

var bpsScale = decimal.NewFromInt(model.BasisPointScale)

// ApplyBuyFee returns ceil(raw * (10000 + bps) / 10000), the total reserve a
// buyer pays for a raw curve price.
func ApplyBuyFee(raw decimal.Decimal, cfg model.FeeConfig) (decimal.Decimal, error) {
	if err := check("raw price", raw, cfg); err != nil {
		return decimal.Zero, err
	}
	return precision.MulDiv(raw, bpsScale.Add(bps(cfg)), bpsScale, precision.RoundUp)
}

// ApplySellFee returns floor(raw * (10000 - bps) / 10000), the reserve a
// seller receives for a raw curve payout.
func ApplySellFee(raw decimal.Decimal, cfg model.FeeConfig) (decimal.Decimal, error) {
	if err := check("raw payout", raw, cfg); err != nil {
		return decimal.Zero, err
	}
	return precision.MulDiv(raw, bpsScale.Sub(bps(cfg)), bpsScale, precision.RoundDown)
}

// DeductBuyFee returns floor(gross * 10000 / (10000 + bps)), the part of a
// gross payment that reaches the curve. ApplyBuyFee of the result never
// exceeds gross.
func DeductBuyFee(gross decimal.Decimal, cfg model.FeeConfig) (decimal.Decimal, error) {
	if err := check("gross payment", gross, cfg); err != nil {
		return decimal.Zero, err
	}
	return precision.MulDiv(gross, bpsScale, bpsScale.Add(bps(cfg)), precision.RoundDown)
}

// GrossUpSale returns ceil(net * 10000 / (10000 - bps)), the raw curve payout
// needed for ApplySellFee to yield at least net.
func GrossUpSale(net decimal.Decimal, cfg model.FeeConfig) (decimal.Decimal, error) {
	if err := check("net payout", net, cfg); err != nil {
		return decimal.Zero, err
	}
	return precision.MulDiv(net, bpsScale, bpsScale.Sub(bps(cfg)), precision.RoundUp)
}

func check(name string, v decimal.Decimal, cfg model.FeeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := model.ValidateAmount(name, v); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	return nil
}

func bps(cfg model.FeeConfig) decimal.Decimal {
	return decimal.NewFromInt(int64(cfg.FeeBasisPoints))
}
