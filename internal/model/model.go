// Package model defines the core domain types shared across the curve engine.
// All amounts use shopspring/decimal holding integers in the asset's smallest
// unit. Never float64 for money.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Error taxonomy shared by every core package. Callers match with errors.Is;
// the wrapping message carries the offending operands.
var (
	// ErrInvalidParameter covers non-positive or out-of-range inputs, selling
	// more tokens than exist, and connector weights outside (0, 1_000_000].
	ErrInvalidParameter = errors.New("curve: invalid parameter")

	// ErrDomain is returned when a logarithm or division is undefined for
	// the given operands.
	ErrDomain = errors.New("curve: arithmetic domain error")

	// ErrPrecisionOverflow is returned when a result exceeds the
	// representable magnitude of the arithmetic primitives.
	ErrPrecisionOverflow = errors.New("curve: precision overflow")
)

const (
	// PPMScale is unity in parts-per-million.
	PPMScale = 1_000_000

	// BasisPointScale is unity in basis points.
	BasisPointScale = 10_000

	// DefaultDecimals is the number of fractional decimal places of both the
	// reserve asset and the issued token unless configured otherwise.
	DefaultDecimals = 18
)

var (
	// DefaultVirtualSupply is S0: one whole token at 18 decimals.
	DefaultVirtualSupply = decimal.New(1, DefaultDecimals)

	// DefaultVirtualReserve is C0: one smallest unit of the reserve asset.
	DefaultVirtualReserve = decimal.NewFromInt(1)
)

// ValidateAmount checks that v is a non-negative integer amount.
func ValidateAmount(name string, v decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidParameter, name, v)
	}
	if !v.IsInteger() {
		return fmt.Errorf("%w: %s must be an integer amount, got %s", ErrInvalidParameter, name, v)
	}
	return nil
}

// ValidatePositive checks that v is a strictly positive integer amount.
func ValidatePositive(name string, v decimal.Decimal) error {
	if err := ValidateAmount(name, v); err != nil {
		return err
	}
	if v.IsZero() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidParameter, name)
	}
	return nil
}

// CurveState is an immutable snapshot of one curve instance. The host owns
// and mutates it; the engine only reads it.
type CurveState struct {
	TotalSupply        decimal.Decimal `json:"total_supply"`
	ReserveBalance     decimal.Decimal `json:"reserve_balance"`
	ConnectorWeightPPM uint32          `json:"connector_weight_ppm"`
}

// Validate enforces the weight range and the reserve invariant: the curve
// is undefined at zero reserve with nonzero supply.
func (s CurveState) Validate() error {
	if s.ConnectorWeightPPM == 0 || s.ConnectorWeightPPM > PPMScale {
		return fmt.Errorf("%w: connector weight %d ppm outside (0, %d]",
			ErrInvalidParameter, s.ConnectorWeightPPM, PPMScale)
	}
	if err := ValidateAmount("total supply", s.TotalSupply); err != nil {
		return err
	}
	if err := ValidateAmount("reserve balance", s.ReserveBalance); err != nil {
		return err
	}
	if s.TotalSupply.IsPositive() && s.ReserveBalance.IsZero() {
		return fmt.Errorf("%w: zero reserve with supply %s", ErrInvalidParameter, s.TotalSupply)
	}
	return nil
}

// IsLinear reports whether the curve is the w = 1 special case.
func (s CurveState) IsLinear() bool {
	return s.ConnectorWeightPPM == PPMScale
}

// Weight returns the connector weight as an exact fraction of unity.
func (s CurveState) Weight() decimal.Decimal {
	return decimal.New(int64(s.ConnectorWeightPPM), -6)
}

// CalibrationAnchors are the inputs to connector-weight calibration.
// VirtualSupply (S0) and VirtualReserve (C0) are fixed protocol constants.
type CalibrationAnchors struct {
	TargetReturn   decimal.Decimal `json:"target_return"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
	VirtualSupply  decimal.Decimal `json:"virtual_supply"`
	VirtualReserve decimal.Decimal `json:"virtual_reserve"`
}

// DefaultAnchors pairs a target return and deposit with the protocol's
// default virtual supply and reserve.
func DefaultAnchors(targetReturn, depositAmount decimal.Decimal) CalibrationAnchors {
	return CalibrationAnchors{
		TargetReturn:   targetReturn,
		DepositAmount:  depositAmount,
		VirtualSupply:  DefaultVirtualSupply,
		VirtualReserve: DefaultVirtualReserve,
	}
}

// FeeConfig is fixed at curve setup and never mutated by the engine.
type FeeConfig struct {
	FeeBasisPoints uint32 `json:"fee_basis_points"`
}

// Validate checks the fee lies in [0, 10_000) basis points.
func (f FeeConfig) Validate() error {
	if f.FeeBasisPoints >= BasisPointScale {
		return fmt.Errorf("%w: fee %d bps outside [0, %d)", ErrInvalidParameter, f.FeeBasisPoints, BasisPointScale)
	}
	return nil
}

// ThresholdState tracks cumulative reserve volume against a one-shot
// threshold. Triggered is terminal for the engine; re-arming is a host concern.
type ThresholdState struct {
	CumulativeReserveVolume decimal.Decimal `json:"cumulative_reserve_volume"`
	ThresholdAmount         decimal.Decimal `json:"threshold_amount"`
	Triggered               bool            `json:"triggered"`
}

// Curve statuses.
const (
	StatusBonding   = "bonding"
	StatusGraduated = "graduated"
)

// Trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Curve is the host's persistent record of one issued token and its curve.
type Curve struct {
	ID               string          `json:"id" db:"id"`
	Symbol           string          `json:"symbol" db:"symbol"`
	Name             string          `json:"name" db:"name"`
	TotalSupply      decimal.Decimal `json:"total_supply" db:"total_supply"`
	ReserveBalance   decimal.Decimal `json:"reserve_balance" db:"reserve_balance"`
	WeightPPM        uint32          `json:"weight_ppm" db:"weight_ppm"`
	FeeBPS           uint32          `json:"fee_bps" db:"fee_bps"`
	Volume           decimal.Decimal `json:"volume" db:"volume"`
	VolumeThreshold  decimal.Decimal `json:"volume_threshold" db:"volume_threshold"`
	ThresholdReached bool            `json:"threshold_reached" db:"threshold_reached"`
	FeesEarned       decimal.Decimal `json:"fees_earned" db:"fees_earned"`
	Status           string          `json:"status" db:"status"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// State returns the pricing snapshot of the curve.
func (c *Curve) State() CurveState {
	return CurveState{
		TotalSupply:        c.TotalSupply,
		ReserveBalance:     c.ReserveBalance,
		ConnectorWeightPPM: c.WeightPPM,
	}
}

// FeeConfig returns the curve's fee configuration.
func (c *Curve) FeeConfig() FeeConfig {
	return FeeConfig{FeeBasisPoints: c.FeeBPS}
}

// ThresholdState returns the curve's volume-threshold snapshot.
func (c *Curve) ThresholdState() ThresholdState {
	return ThresholdState{
		CumulativeReserveVolume: c.Volume,
		ThresholdAmount:         c.VolumeThreshold,
		Triggered:               c.ThresholdReached,
	}
}

// CurveUpdate is the post-trade state persisted by the host.
type CurveUpdate struct {
	TotalSupply      decimal.Decimal
	ReserveBalance   decimal.Decimal
	Volume           decimal.Decimal
	ThresholdReached bool
	FeesEarned       decimal.Decimal
	Status           string
}

// Trade is an immutable record of a trade execution.
// Once created, these are never modified or deleted.
type Trade struct {
	ID           string          `json:"id" db:"id"`
	CurveID      string          `json:"curve_id" db:"curve_id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Trader       string          `json:"trader" db:"trader"`
	Side         string          `json:"side" db:"side"`                   // "BUY" or "SELL"
	Tokens       decimal.Decimal `json:"tokens" db:"tokens"`               // minted or burned
	Reserve      decimal.Decimal `json:"reserve" db:"reserve"`             // paid in or out by the trader
	CurveReserve decimal.Decimal `json:"curve_reserve" db:"curve_reserve"` // moved into or out of the curve
	Fee          decimal.Decimal `json:"fee" db:"fee"`
	Price        decimal.Decimal `json:"price" db:"price"` // average reserve per whole token
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// Holding is a trader's aggregate position in one curve.
type Holding struct {
	Trader     string          `json:"trader"`
	CurveID    string          `json:"curve_id"`
	Symbol     string          `json:"symbol"`
	Tokens     decimal.Decimal `json:"tokens"`      // bought - sold
	NetReserve decimal.Decimal `json:"net_reserve"` // paid - received
}
