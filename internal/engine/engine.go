// Package engine is the host-facing API of the pricing core. It composes the
// curve calculator with the fee layer and the threshold monitor behind a
// single Pricer capability.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/calibration"
	"github.com/volumefi/curve-engine/internal/curve"
	"github.com/volumefi/curve-engine/internal/fee"
	"github.com/volumefi/curve-engine/internal/model"
	"github.com/volumefi/curve-engine/internal/precision"
	"github.com/volumefi/curve-engine/internal/threshold"
)

// Quote is the result of pricing one trade against a snapshot. Reserve is
// what the trader pays (buy) or receives (sell), fee included. CurveReserve
// is the amount that enters or leaves the curve's reserve balance, so
// Fee = |Reserve - CurveReserve|.
type Quote struct {
	Side         string          `json:"side"`
	Tokens       decimal.Decimal `json:"tokens"`
	Reserve      decimal.Decimal `json:"reserve"`
	CurveReserve decimal.Decimal `json:"curve_reserve"`
	Fee          decimal.Decimal `json:"fee"`
}

// Pricer is everything a host needs from the core.
type Pricer interface {
	Calibrate(anchors model.CalibrationAnchors) (uint32, error)
	QuoteBuyByTokens(st model.CurveState, tokensWanted decimal.Decimal, cfg model.FeeConfig) (Quote, error)
	QuoteBuyByReserve(st model.CurveState, reserveAmount decimal.Decimal, cfg model.FeeConfig) (Quote, error)
	QuoteSellByTokens(st model.CurveState, tokensOffered decimal.Decimal, cfg model.FeeConfig) (Quote, error)
	QuoteSellByReserve(st model.CurveState, reserveWanted decimal.Decimal, cfg model.FeeConfig) (Quote, error)
	SpotPrice(st model.CurveState) (decimal.Decimal, error)
	ProcessVolume(st model.ThresholdState, incoming decimal.Decimal) (model.ThresholdState, bool, error)
}

var _ Pricer = (*Engine)(nil)

// Engine is stateless apart from its precision and safe for concurrent use.
type Engine struct {
	prec precision.Context
	calc *curve.Calculator
}

// New creates an engine that evaluates every formula at prec.
func New(prec precision.Context) *Engine {
	return &Engine{prec: prec, calc: curve.NewCalculator(prec)}
}

// Precision returns the engine's working precision.
func (e *Engine) Precision() precision.Context {
	return e.prec
}

// Calibrate derives a connector weight in ppm from anchors.
func (e *Engine) Calibrate(anchors model.CalibrationAnchors) (uint32, error) {
	return calibration.Calibrate(e.prec, anchors)
}

// QuoteBuyByTokens prices minting exactly tokensWanted. Reserve is the
// fee-inclusive amount charged.
func (e *Engine) QuoteBuyByTokens(st model.CurveState, tokensWanted decimal.Decimal, cfg model.FeeConfig) (Quote, error) {
	if err := cfg.Validate(); err != nil {
		return Quote{}, err
	}
	raw, err := e.calc.BuyPrice(st, tokensWanted)
	if err != nil {
		return Quote{}, fmt.Errorf("buy price: %w", err)
	}
	gross, err := fee.ApplyBuyFee(raw, cfg)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Side:         model.SideBuy,
		Tokens:       tokensWanted,
		Reserve:      gross,
		CurveReserve: raw,
		Fee:          gross.Sub(raw),
	}, nil
}

// QuoteBuyByReserve prices spending reserveAmount. The fee is deducted from
// the input before the remainder is deposited into the curve.
func (e *Engine) QuoteBuyByReserve(st model.CurveState, reserveAmount decimal.Decimal, cfg model.FeeConfig) (Quote, error) {
	net, err := fee.DeductBuyFee(reserveAmount, cfg)
	if err != nil {
		return Quote{}, err
	}
	tokens, err := e.calc.TokensForDeposit(st, net)
	if err != nil {
		return Quote{}, fmt.Errorf("tokens for deposit: %w", err)
	}
	return Quote{
		Side:         model.SideBuy,
		Tokens:       tokens,
		Reserve:      reserveAmount,
		CurveReserve: net,
		Fee:          reserveAmount.Sub(net),
	}, nil
}

// QuoteSellByTokens prices burning tokensOffered. Reserve is the amount paid
// out after the fee.
func (e *Engine) QuoteSellByTokens(st model.CurveState, tokensOffered decimal.Decimal, cfg model.FeeConfig) (Quote, error) {
	if err := cfg.Validate(); err != nil {
		return Quote{}, err
	}
	raw, err := e.calc.SellPrice(st, tokensOffered)
	if err != nil {
		return Quote{}, fmt.Errorf("sell price: %w", err)
	}
	net, err := fee.ApplySellFee(raw, cfg)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Side:         model.SideSell,
		Tokens:       tokensOffered,
		Reserve:      net,
		CurveReserve: raw,
		Fee:          raw.Sub(net),
	}, nil
}

// QuoteSellByReserve prices receiving at least reserveWanted after the fee.
// Tokens is the smallest burn that achieves it; Reserve is what that burn
// actually pays, which may exceed reserveWanted by rounding.
func (e *Engine) QuoteSellByReserve(st model.CurveState, reserveWanted decimal.Decimal, cfg model.FeeConfig) (Quote, error) {
	rawWanted, err := fee.GrossUpSale(reserveWanted, cfg)
	if err != nil {
		return Quote{}, err
	}
	tokens, err := e.calc.TokensForWithdrawal(st, rawWanted)
	if err != nil {
		return Quote{}, fmt.Errorf("tokens for withdrawal: %w", err)
	}
	q, err := e.QuoteSellByTokens(st, tokens, cfg)
	if err != nil {
		return Quote{}, err
	}
	if q.Reserve.LessThan(reserveWanted) {
		return Quote{}, fmt.Errorf("%w: burning %s tokens pays %s, below %s",
			model.ErrPrecisionOverflow, tokens, q.Reserve, reserveWanted)
	}
	return q, nil
}

// SpotPrice returns the marginal reserve per token unit.
func (e *Engine) SpotPrice(st model.CurveState) (decimal.Decimal, error) {
	return e.calc.SpotPrice(st)
}

// ProcessVolume feeds curve-side reserve volume to the threshold monitor.
func (e *Engine) ProcessVolume(st model.ThresholdState, incoming decimal.Decimal) (model.ThresholdState, bool, error) {
	return threshold.ProcessVolume(st, incoming)
}
