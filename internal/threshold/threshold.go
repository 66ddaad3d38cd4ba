// Package threshold tracks cumulative reserve volume against a one-shot
// threshold and signals the crossing exactly once.
package threshold

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
)

// Phase is the monitor's lifecycle position.
type Phase int

const (
	Below Phase = iota
	Triggered
)

func (p Phase) String() string {
	if p == Triggered {
		return "triggered"
	}
	return "below"
}

// PhaseOf reports the phase of st.
func PhaseOf(st model.ThresholdState) Phase {
	if st.Triggered {
		return Triggered
	}
	return Below
}

// New returns a fresh state in the Below phase.
func New(thresholdAmount decimal.Decimal) (model.ThresholdState, error) {
	if err := model.ValidateAmount("threshold amount", thresholdAmount); err != nil {
		return model.ThresholdState{}, err
	}
	return model.ThresholdState{
		CumulativeReserveVolume: decimal.Zero,
		ThresholdAmount:         thresholdAmount,
	}, nil
}

// ProcessVolume adds incoming reserve volume to the counter. crossed is true
// only on the call that moves the state from Below to Triggered; after that
// the counter keeps accumulating but no further signal is emitted. On error
// st is returned unchanged.
func ProcessVolume(st model.ThresholdState, incoming decimal.Decimal) (model.ThresholdState, bool, error) {
	if err := model.ValidateAmount("incoming volume", incoming); err != nil {
		return st, false, err
	}
	if err := model.ValidateAmount("cumulative volume", st.CumulativeReserveVolume); err != nil {
		return st, false, err
	}
	if err := model.ValidateAmount("threshold amount", st.ThresholdAmount); err != nil {
		return st, false, fmt.Errorf("threshold: %w", err)
	}

	next := st
	next.CumulativeReserveVolume = st.CumulativeReserveVolume.Add(incoming)
	if st.Triggered {
		return next, false, nil
	}
	if next.CumulativeReserveVolume.GreaterThanOrEqual(st.ThresholdAmount) {
		next.Triggered = true
		return next, true, nil
	}
	return next, false, nil
}
