package fee

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cfg(bps uint32) model.FeeConfig {
	return model.FeeConfig{FeeBasisPoints: bps}
}

func TestApplyBuyFee(t *testing.T) {
	tests := []struct {
		raw  string
		bps  uint32
		want string
	}{
		{"1000", 500, "1050"},
		{"1001", 500, "1052"}, // 1051.05 rounds up
		{"1", 1, "2"},
		{"0", 500, "0"},
		{"123456789", 0, "123456789"},
		{"3000000000000000000", 100, "3030000000000000000"},
	}
	for _, tt := range tests {
		got, err := ApplyBuyFee(d(tt.raw), cfg(tt.bps))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("ApplyBuyFee(%s, %d) = %s, want %s", tt.raw, tt.bps, got, tt.want)
		}
	}
}

func TestApplySellFee(t *testing.T) {
	tests := []struct {
		raw  string
		bps  uint32
		want string
	}{
		{"1000", 500, "950"},
		{"1001", 500, "950"}, // 950.95 rounds down
		{"1", 1, "0"},
		{"123456789", 0, "123456789"},
		{"10000", 9999, "1"},
	}
	for _, tt := range tests {
		got, err := ApplySellFee(d(tt.raw), cfg(tt.bps))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("ApplySellFee(%s, %d) = %s, want %s", tt.raw, tt.bps, got, tt.want)
		}
	}
}

func TestDeductBuyFee(t *testing.T) {
	tests := []struct {
		gross string
		bps   uint32
		want  string
	}{
		{"1050", 500, "1000"},
		{"1052", 500, "1001"},
		{"1", 500, "0"},
		{"999", 0, "999"},
	}
	for _, tt := range tests {
		got, err := DeductBuyFee(d(tt.gross), cfg(tt.bps))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("DeductBuyFee(%s, %d) = %s, want %s", tt.gross, tt.bps, got, tt.want)
		}
	}
}

func TestGrossUpSale(t *testing.T) {
	tests := []struct {
		net  string
		bps  uint32
		want string
	}{
		{"950", 500, "1000"},
		{"951", 500, "1002"},
		{"0", 500, "0"},
		{"1", 9999, "10000"},
	}
	for _, tt := range tests {
		got, err := GrossUpSale(d(tt.net), cfg(tt.bps))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("GrossUpSale(%s, %d) = %s, want %s", tt.net, tt.bps, got, tt.want)
		}
	}
}

func TestFeeInverses_FavourTheCurve(t *testing.T) {
	for _, bps := range []uint32{0, 1, 30, 500, 9999} {
		for i := int64(0); i <= 3000; i += 7 {
			amt := decimal.NewFromInt(i)

			net, err := DeductBuyFee(amt, cfg(bps))
			if err != nil {
				t.Fatalf("deduct: %v", err)
			}
			charged, err := ApplyBuyFee(net, cfg(bps))
			if err != nil {
				t.Fatalf("apply buy: %v", err)
			}
			if charged.GreaterThan(amt) {
				t.Errorf("bps=%d gross=%s: re-applying fee charges %s", bps, amt, charged)
			}

			raw, err := GrossUpSale(amt, cfg(bps))
			if err != nil {
				t.Fatalf("gross up: %v", err)
			}
			paid, err := ApplySellFee(raw, cfg(bps))
			if err != nil {
				t.Fatalf("apply sell: %v", err)
			}
			if paid.LessThan(amt) {
				t.Errorf("bps=%d net=%s: grossed-up sale pays only %s", bps, amt, paid)
			}
		}
	}
}

func TestInvalidInputs(t *testing.T) {
	ops := map[string]func(decimal.Decimal, model.FeeConfig) (decimal.Decimal, error){
		"ApplyBuyFee":  ApplyBuyFee,
		"ApplySellFee": ApplySellFee,
		"DeductBuyFee": DeductBuyFee,
		"GrossUpSale":  GrossUpSale,
	}
	for name, op := range ops {
		if _, err := op(d("1000"), cfg(model.BasisPointScale)); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("%s with 10000 bps: expected ErrInvalidParameter, got %v", name, err)
		}
		if _, err := op(d("-1"), cfg(500)); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("%s with negative amount: expected ErrInvalidParameter, got %v", name, err)
		}
		if _, err := op(d("1.5"), cfg(500)); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("%s with fractional amount: expected ErrInvalidParameter, got %v", name, err)
		}
	}
}
