package domain

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasketSkipsLegWithoutVolatility(t *testing.T) {
	f := newModelFixture()
	noIV := option("SPOT-C-110", "SPOT", OptionTypeCall, "110", f.expiry)
	f.securities.add(noIV)

	positions := fakePositions{
		{InstrumentID: f.call.ID, CurrentValue: dec("10")},
		{InstrumentID: noIV.ID, CurrentValue: dec("-4")},
		{InstrumentID: "SPOT", CurrentValue: dec("3")},
	}

	both, err := NewBasket(f.securities, f.market, positions)
	require.NoError(t, err)
	_, err = both.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)
	_, err = both.AddLeg(noIV, ModelBlackScholes)
	require.NoError(t, err)

	single, err := NewBasket(f.securities, f.market, positions)
	require.NoError(t, err)
	_, err = single.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)

	got, err := both.Delta(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	want, err := single.Delta(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	require.True(t, got.Valid)
	assert.True(t, got.Decimal.Equal(want.Decimal))

	leg, ok := single.Leg(f.call.ID)
	require.True(t, ok)
	legDelta, err := leg.Delta(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, want.Decimal.Equal(legDelta.Decimal.Mul(dec("10")).Add(dec("3"))))
}

func TestBasketWeightsGreeksByPosition(t *testing.T) {
	f := newModelFixture()
	positions := fakePositions{
		{InstrumentID: f.call.ID, CurrentValue: dec("2")},
		{InstrumentID: f.put.ID, CurrentValue: dec("-1")},
		{InstrumentID: f.put.ID, CurrentValue: dec("-2")},
	}
	b, err := NewBasket(f.securities, f.market, positions)
	require.NoError(t, err)
	call, err := b.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)
	put, err := b.AddLeg(f.put, ModelBlackScholes)
	require.NoError(t, err)

	callVega, err := call.Vega(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	putVega, err := put.Vega(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)

	vega, err := b.Vega(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, vega.Decimal.Equal(callVega.Decimal.Mul(dec("2")).Sub(putVega.Decimal.Mul(dec("3")))))

	callIV, err := call.ImpliedVolatility(testNow, dec("9"))
	require.NoError(t, err)
	putIV, err := put.ImpliedVolatility(testNow, dec("9"))
	require.NoError(t, err)
	iv, err := b.ImpliedVolatility(testNow, dec("9"))
	require.NoError(t, err)
	assert.True(t, iv.Decimal.Equal(callIV.Decimal.Add(putIV.Decimal)))
}

func TestBasketEmptyAndExpired(t *testing.T) {
	f := newModelFixture()
	b, err := NewBasket(f.securities, f.market, fakePositions{})
	require.NoError(t, err)

	_, err = b.UnderlyingAsset()
	assert.ErrorIs(t, err, ErrNoOptions)
	_, err = b.Delta(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	assert.ErrorIs(t, err, ErrNoOptions)

	g, err := b.Gamma(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, g.Valid)
	assert.True(t, g.Decimal.IsZero())

	_, err = b.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)
	v, err := b.Premium(f.expiry.AddDate(0, 0, 1), decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, v.Decimal.IsZero())
}

func TestBasketLegManagement(t *testing.T) {
	f := newModelFixture()
	other := option("OTHER-C-100", "OTHER", OptionTypeCall, "100", f.expiry)
	b, err := NewBasket(f.securities, f.market, fakePositions{})
	require.NoError(t, err)

	_, err = b.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)
	_, err = b.AddLeg(f.call, ModelBlackScholes)
	assert.ErrorIs(t, err, ErrDuplicateLeg)
	_, err = b.AddLeg(other, ModelBlackScholes)
	assert.ErrorIs(t, err, ErrLegMismatch)
	_, err = b.AddLeg(f.asset, ModelBlackScholes)
	assert.ErrorIs(t, err, ErrNotOption)
	_, err = b.AddLeg(f.put, ModelKind("BINOMIAL"))
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = b.AddLeg(f.put, ModelBlackScholes)
	require.NoError(t, err)
	legs := b.Legs()
	require.Len(t, legs, 2)
	assert.Equal(t, f.call.ID, legs[0].Option().ID)
	assert.Equal(t, f.put.ID, legs[1].Option().ID)

	assert.True(t, b.RemoveLeg(f.call.ID))
	assert.False(t, b.RemoveLeg(f.call.ID))
	assert.Equal(t, 1, b.Len())

	asset, err := b.UnderlyingAsset()
	require.NoError(t, err)
	assert.Equal(t, "SPOT", asset.ID)
}

func TestBasketPropagatesConfiguration(t *testing.T) {
	f := newModelFixture()
	b, err := NewBasket(f.securities, f.market, fakePositions{})
	require.NoError(t, err)
	b.SetRiskFree(dec("0.05"))

	first, err := b.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)
	assert.True(t, first.RiskFree().Equal(dec("0.05")))

	assert.ErrorIs(t, b.SetRoundDecimals(-5), ErrInvalidRoundDecimals)
	require.NoError(t, b.SetRoundDecimals(3))
	assert.Equal(t, 3, first.RoundDecimals())

	second, err := b.AddLeg(f.put, ModelBlackScholes)
	require.NoError(t, err)
	assert.Equal(t, 3, second.RoundDecimals())

	b.SetDividend(dec("0.01"))
	future := &Instrument{ID: "FUT", Type: SecurityTypeFuture}
	f.securities.add(future)
	_, err = b.AddLeg(option("SPOT-C-105", "SPOT", OptionTypeCall, "105", f.expiry), ModelBlack76)
	assert.ErrorIs(t, err, ErrFuturesDividend)
}

func TestBasketDefaultDividendSkipsBlack76Legs(t *testing.T) {
	f := newModelFixture()
	b, err := NewBasket(f.securities, f.market, fakePositions{})
	require.NoError(t, err)
	b.SetDefaultDividend(dec("0.02"))

	equity, err := b.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)
	assert.True(t, equity.Dividend().Equal(dec("0.02")))

	futures, err := b.AddLeg(f.put, ModelBlack76)
	require.NoError(t, err)
	assert.True(t, futures.Dividend().IsZero())
	assert.True(t, b.Dividend().Equal(dec("0.02")))
}

func TestBasketConcurrentMutation(t *testing.T) {
	f := newModelFixture()
	b, err := NewBasket(f.securities, f.market, fakePositions{{InstrumentID: f.call.ID, CurrentValue: dec("1")}})
	require.NoError(t, err)
	_, err = b.AddLeg(f.call, ModelBlackScholes)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := b.Gamma(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
			assert.NoError(t, err)
		}()
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, b.SetRoundDecimals(n%4))
		}(i)
	}
	wg.Wait()
}
