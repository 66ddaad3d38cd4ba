package engine

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumefi/curve-engine/internal/model"
	"github.com/volumefi/curve-engine/internal/precision"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ether(units int64) decimal.Decimal {
	return decimal.New(units, 18)
}

// sqrtCurve is a w = 1/2 curve with 1M tokens backed by 10 ETH, where the
// formulas have exact rational results.
func sqrtCurve() model.CurveState {
	return model.CurveState{
		TotalSupply:        ether(1_000_000),
		ReserveBalance:     ether(10),
		ConnectorWeightPPM: 500_000,
	}
}

var fivePercent = model.FeeConfig{FeeBasisPoints: 500}

func TestEngine_Calibrate(t *testing.T) {
	e := New(precision.Default())
	w, err := e.Calibrate(model.DefaultAnchors(ether(400_000_000), ether(3)))
	require.NoError(t, err)
	assert.Equal(t, uint32(465552), w)
}

func TestQuoteBuyByTokens_AddsFeeOnTop(t *testing.T) {
	e := New(precision.Default())
	q, err := e.QuoteBuyByTokens(sqrtCurve(), ether(1_000_000), fivePercent)
	require.NoError(t, err)

	assert.Equal(t, model.SideBuy, q.Side)
	assert.True(t, q.Tokens.Equal(ether(1_000_000)))
	assert.True(t, q.CurveReserve.Equal(ether(30)), "curve reserve %s", q.CurveReserve)
	assert.True(t, q.Reserve.Equal(d("31500000000000000000")), "charged %s", q.Reserve)
	assert.True(t, q.Fee.Equal(d("1500000000000000000")), "fee %s", q.Fee)
}

func TestQuoteBuyByReserve_DeductsFeeFirst(t *testing.T) {
	e := New(precision.Default())
	q, err := e.QuoteBuyByReserve(sqrtCurve(), d("31500000000000000000"), fivePercent)
	require.NoError(t, err)

	assert.True(t, q.CurveReserve.Equal(ether(30)), "curve reserve %s", q.CurveReserve)
	assert.True(t, q.Tokens.Equal(ether(1_000_000)), "tokens %s", q.Tokens)
	assert.True(t, q.Fee.Equal(d("1500000000000000000")), "fee %s", q.Fee)
	assert.True(t, q.Reserve.Equal(q.CurveReserve.Add(q.Fee)))
}

func TestQuoteSellByTokens_DeductsFeeFromPayout(t *testing.T) {
	e := New(precision.Default())
	q, err := e.QuoteSellByTokens(sqrtCurve(), ether(500_000), fivePercent)
	require.NoError(t, err)

	assert.Equal(t, model.SideSell, q.Side)
	assert.True(t, q.CurveReserve.Equal(d("7500000000000000000")), "raw %s", q.CurveReserve)
	assert.True(t, q.Reserve.Equal(d("7125000000000000000")), "paid %s", q.Reserve)
	assert.True(t, q.Fee.Equal(d("375000000000000000")), "fee %s", q.Fee)
}

func TestQuoteSellByReserve_BurnsJustEnough(t *testing.T) {
	e := New(precision.Default())
	q, err := e.QuoteSellByReserve(sqrtCurve(), d("7125000000000000000"), fivePercent)
	require.NoError(t, err)

	assert.True(t, q.Tokens.Equal(ether(500_000)), "tokens %s", q.Tokens)
	assert.True(t, q.Reserve.Equal(d("7125000000000000000")), "paid %s", q.Reserve)
}

func TestQuoteSellByReserve_PaysAtLeastWanted(t *testing.T) {
	e := New(precision.Default())
	st := sqrtCurve()
	st.ConnectorWeightPPM = 465552
	for _, want := range []decimal.Decimal{d("1"), d("777777777777"), ether(1), ether(9)} {
		q, err := e.QuoteSellByReserve(st, want, model.FeeConfig{FeeBasisPoints: 30})
		require.NoError(t, err)
		assert.True(t, q.Reserve.GreaterThanOrEqual(want), "want %s, paid %s", want, q.Reserve)
		assert.True(t, q.Tokens.LessThanOrEqual(st.TotalSupply))
	}
}

func TestQuoteSellByReserve_MoreThanReserve(t *testing.T) {
	e := New(precision.Default())
	_, err := e.QuoteSellByReserve(sqrtCurve(), ether(10), fivePercent)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestQuote_ZeroFeeMatchesCurve(t *testing.T) {
	e := New(precision.Default())
	st := sqrtCurve()
	st.ConnectorWeightPPM = 465552

	buy, err := e.QuoteBuyByTokens(st, ether(1), model.FeeConfig{})
	require.NoError(t, err)
	assert.Equal(t, "21479889979936", buy.Reserve.String())
	assert.True(t, buy.Fee.IsZero())

	sell, err := e.QuoteSellByTokens(st, ether(1), model.FeeConfig{})
	require.NoError(t, err)
	assert.Equal(t, "21479865321299", sell.Reserve.String())
}

func TestQuote_BuyThenSellLosesFees(t *testing.T) {
	e := New(precision.Default())
	st := sqrtCurve()
	st.ConnectorWeightPPM = 465552

	buy, err := e.QuoteBuyByReserve(st, ether(2), fivePercent)
	require.NoError(t, err)
	after := model.CurveState{
		TotalSupply:        st.TotalSupply.Add(buy.Tokens),
		ReserveBalance:     st.ReserveBalance.Add(buy.CurveReserve),
		ConnectorWeightPPM: st.ConnectorWeightPPM,
	}
	sell, err := e.QuoteSellByTokens(after, buy.Tokens, fivePercent)
	require.NoError(t, err)
	assert.True(t, sell.Reserve.LessThan(buy.Reserve), "sold for %s after paying %s", sell.Reserve, buy.Reserve)
}

func TestQuote_InvalidFee(t *testing.T) {
	e := New(precision.Default())
	bad := model.FeeConfig{FeeBasisPoints: model.BasisPointScale}

	_, err := e.QuoteBuyByTokens(sqrtCurve(), ether(1), bad)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = e.QuoteBuyByReserve(sqrtCurve(), ether(1), bad)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = e.QuoteSellByTokens(sqrtCurve(), ether(1), bad)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = e.QuoteSellByReserve(sqrtCurve(), ether(1), bad)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestQuote_SellMoreThanSupply(t *testing.T) {
	e := New(precision.Default())
	_, err := e.QuoteSellByTokens(sqrtCurve(), ether(1_000_001), fivePercent)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestEngine_ProcessVolume(t *testing.T) {
	e := New(precision.Default())
	st := model.ThresholdState{ThresholdAmount: ether(5), CumulativeReserveVolume: decimal.Zero}

	st, crossed, err := e.ProcessVolume(st, ether(3))
	require.NoError(t, err)
	assert.False(t, crossed)

	st, crossed, err = e.ProcessVolume(st, ether(3))
	require.NoError(t, err)
	assert.True(t, crossed)
	assert.True(t, st.Triggered)

	_, crossed, err = e.ProcessVolume(st, ether(3))
	require.NoError(t, err)
	assert.False(t, crossed)
}

func TestEngine_SpotPrice(t *testing.T) {
	p, err := New(precision.Default()).SpotPrice(sqrtCurve())
	require.NoError(t, err)
	assert.Equal(t, "0.00002", p.String())
}

func TestEngine_ConcurrentQuotes(t *testing.T) {
	e := New(precision.Default())
	st := sqrtCurve()
	st.ConnectorWeightPPM = 465552
	want, err := e.QuoteBuyByTokens(st, ether(1), fivePercent)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := e.QuoteBuyByTokens(st, ether(1), fivePercent)
			if err != nil || !q.Reserve.Equal(want.Reserve) {
				errs <- q.Reserve.String()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent quote %s differs from %s", got, want.Reserve)
	}
}
