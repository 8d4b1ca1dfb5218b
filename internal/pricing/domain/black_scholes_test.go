package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelFixture struct {
	securities *fakeSecurities
	market     *fakeMarket
	asset      *Instrument
	call       *Instrument
	put        *Instrument
	expiry     time.Time
}

func newModelFixture() *modelFixture {
	expiry := testNow.Add(180 * 24 * time.Hour)
	f := &modelFixture{
		securities: &fakeSecurities{},
		market:     newFakeMarket(),
		asset:      stock("SPOT"),
		expiry:     expiry,
	}
	f.call = option("SPOT-C-100", "SPOT", OptionTypeCall, "100", expiry)
	f.put = option("SPOT-P-100", "SPOT", OptionTypePut, "100", expiry)
	f.securities.add(f.asset, f.call, f.put)
	f.market.set("SPOT", FieldLastTradePrice, "100")
	f.market.set(f.call.ID, FieldImpliedVolatility, "30")
	f.market.set(f.put.ID, FieldImpliedVolatility, "30")
	return f
}

func TestBlackScholesResolvesLiveInputs(t *testing.T) {
	f := newModelFixture()
	m, err := NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)
	m.SetRiskFree(dec("0.03"))

	assert.True(t, m.DefaultDeviation().Equal(dec("0.3")))

	asset, err := m.UnderlyingAsset()
	require.NoError(t, err)
	assert.Equal(t, "SPOT", asset.ID)

	implicit, err := m.Premium(testNow, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.NoError(t, err)
	require.True(t, implicit.Valid)

	explicit, err := m.Premium(testNow, null("0.3"), null("100"))
	require.NoError(t, err)
	assert.True(t, implicit.Decimal.Equal(explicit.Decimal))
}

func TestBlackScholesNoValue(t *testing.T) {
	f := newModelFixture()
	m, err := NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		v, err := m.Delta(f.expiry.Add(time.Hour), decimal.NullDecimal{}, decimal.NullDecimal{})
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})

	t.Run("unknown asset price", func(t *testing.T) {
		market := newFakeMarket()
		m, err := NewBlackScholes(f.call, f.securities, market)
		require.NoError(t, err)
		for _, calc := range []func(time.Time, decimal.NullDecimal, decimal.NullDecimal) (decimal.NullDecimal, error){
			m.Premium, m.Delta, m.Gamma, m.Vega, m.Theta, m.Rho,
		} {
			v, err := calc(testNow, null("0.2"), decimal.NullDecimal{})
			require.NoError(t, err)
			assert.False(t, v.Valid)
		}
	})
}

func TestBlackScholesContractViolations(t *testing.T) {
	f := newModelFixture()

	_, err := NewBlackScholes(f.asset, f.securities, f.market)
	assert.ErrorIs(t, err, ErrNotOption)

	_, err = NewBlackScholes(nil, f.securities, f.market)
	assert.ErrorIs(t, err, ErrNilInstrument)

	noType := *f.call
	noType.OptionType = ""
	m, err := NewBlackScholes(&noType, f.securities, f.market)
	require.NoError(t, err)
	_, err = m.Premium(testNow, null("0.2"), null("100"))
	assert.ErrorIs(t, err, ErrMissingOptionType)

	noStrike := *f.call
	noStrike.Strike = decimal.NullDecimal{}
	m, err = NewBlackScholes(&noStrike, f.securities, f.market)
	require.NoError(t, err)
	_, err = m.Delta(testNow, null("0.2"), null("100"))
	assert.ErrorIs(t, err, ErrMissingStrike)

	orphan := *f.call
	orphan.UnderlyingID = "MISSING"
	m, err = NewBlackScholes(&orphan, f.securities, f.market)
	require.NoError(t, err)
	_, err = m.Delta(testNow, null("0.2"), decimal.NullDecimal{})
	assert.ErrorIs(t, err, ErrUnderlyingNotFound)

	m, err = NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)
	_, err = m.Vega(testNow, null("-0.2"), null("100"))
	assert.ErrorIs(t, err, ErrNegativeDeviation)
}

func TestBlackScholesRounding(t *testing.T) {
	f := newModelFixture()
	m, err := NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)

	assert.Equal(t, -1, m.RoundDecimals())
	assert.ErrorIs(t, m.SetRoundDecimals(-2), ErrInvalidRoundDecimals)
	require.NoError(t, m.SetRoundDecimals(2))

	v, err := m.Premium(testNow, null("0.25"), null("103.37"))
	require.NoError(t, err)
	require.True(t, v.Valid)
	assert.GreaterOrEqual(t, v.Decimal.Exponent(), int32(-2))

	require.NoError(t, m.SetRoundDecimals(-1))
	raw, err := m.Premium(testNow, null("0.25"), null("103.37"))
	require.NoError(t, err)
	assert.True(t, raw.Decimal.RoundBank(2).Equal(v.Decimal))
}

func TestGammaZeroThroughModel(t *testing.T) {
	f := newModelFixture()
	m, err := NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)

	g, err := m.Gamma(testNow, null("0"), null("100"))
	require.NoError(t, err)
	require.True(t, g.Valid)
	assert.True(t, g.Decimal.IsZero())

	g, err = m.Gamma(testNow, null("0.4"), null("0"))
	require.NoError(t, err)
	require.True(t, g.Valid)
	assert.True(t, g.Decimal.IsZero())
}

func TestZeroDeviationAtTheMoney(t *testing.T) {
	f := newModelFixture()
	m, err := NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)

	p, err := m.Premium(testNow, null("0"), null("100"))
	assert.ErrorIs(t, err, ErrNonFiniteValue)
	assert.Contains(t, err.Error(), "NaN")
	assert.False(t, p.Valid)

	d, err := m.Delta(testNow, null("0"), null("100"))
	assert.ErrorIs(t, err, ErrNonFiniteValue)
	assert.False(t, d.Valid)

	// 价内时 d1 为 +Inf，价格等于内在价值
	p, err = m.Premium(testNow, null("0"), null("120"))
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.True(t, p.Decimal.Equal(dec("20")), p.Decimal.String())
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	f := newModelFixture()
	for _, inst := range []*Instrument{f.call, f.put} {
		for _, sigma := range []string{"0.05", "0.3", "0.75", "1.5"} {
			t.Run(string(inst.OptionType)+"/"+sigma, func(t *testing.T) {
				m, err := NewBlackScholes(inst, f.securities, f.market)
				require.NoError(t, err)
				m.SetRiskFree(dec("0.02"))

				premium, err := m.Premium(testNow, null(sigma), decimal.NullDecimal{})
				require.NoError(t, err)
				require.True(t, premium.Valid)

				iv, err := m.ImpliedVolatility(testNow, premium.Decimal)
				require.NoError(t, err)
				require.True(t, iv.Valid)
				assert.InDelta(t, dec(sigma).Mul(hundred).InexactFloat64(), iv.Decimal.InexactFloat64(), 0.001)
			})
		}
	}
}

func TestImpliedVolatilityBelowFloor(t *testing.T) {
	f := newModelFixture()
	m, err := NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)

	floor, err := m.Premium(testNow, decimal.NewNullDecimal(minDeviation), decimal.NullDecimal{})
	require.NoError(t, err)
	require.True(t, floor.Valid)

	for _, premium := range []decimal.Decimal{floor.Decimal, floor.Decimal.Sub(dec("0.5")), decimal.Zero} {
		iv, err := m.ImpliedVolatility(testNow, premium)
		require.NoError(t, err)
		assert.False(t, iv.Valid, "premium %s", premium)
	}
}

func TestImpliedVolatilitySolver(t *testing.T) {
	linear := func(sigma decimal.Decimal) (decimal.NullDecimal, error) {
		return decimal.NewNullDecimal(sigma.Mul(hundred)), nil
	}

	iv, err := ImpliedVolatility(dec("42"), linear)
	require.NoError(t, err)
	require.True(t, iv.Valid)
	assert.InDelta(t, 42, iv.Decimal.InexactFloat64(), 0.001)

	_, err = bisectVolatility(dec("42"), linear, dec("0.0000000001"), 3)
	assert.ErrorIs(t, err, ErrVolatilityNotConverged)

	_, err = ImpliedVolatility(dec("1"), nil)
	assert.ErrorIs(t, err, ErrNilPremiumFunc)

	unknown := func(decimal.Decimal) (decimal.NullDecimal, error) { return decimal.NullDecimal{}, nil }
	iv, err = ImpliedVolatility(dec("1"), unknown)
	require.NoError(t, err)
	assert.False(t, iv.Valid)
}

func TestBlack76(t *testing.T) {
	f := newModelFixture()
	future := &Instrument{ID: "FUT", Type: SecurityTypeFuture}
	fopt := option("FUT-C-100", "FUT", OptionTypeCall, "100", f.expiry)
	f.securities.add(future, fopt)
	f.market.set("FUT", FieldLastTradePrice, "104")

	m, err := NewBlack76(fopt, f.securities, f.market)
	require.NoError(t, err)
	assert.Equal(t, ModelBlack76, m.Kind())

	assert.ErrorIs(t, m.SetDividend(dec("0.01")), ErrFuturesDividend)
	require.NoError(t, m.SetDividend(decimal.Zero))
	m.SetRiskFree(dec("0.04"))

	sigma := dec("0.25")
	s, k, r := dec("104"), dec("100"), dec("0.04")
	tl, ok, err := m.ExpirationTimeLine(testNow)
	require.NoError(t, err)
	require.True(t, ok)

	d1, err := D1(s, k, decimal.Zero, decimal.Zero, sigma, tl)
	require.NoError(t, err)
	factor := decimal.NewFromFloat(ExpRate(r, tl))

	premium, err := Premium(OptionTypeCall, k, s, r, decimal.Zero, sigma, tl, d1)
	require.NoError(t, err)
	delta, err := Delta(OptionTypeCall, d1)
	require.NoError(t, err)
	gamma, err := Gamma(s, sigma, tl, d1)
	require.NoError(t, err)
	vega, err := Vega(s, tl, d1)
	require.NoError(t, err)
	theta, err := Theta(OptionTypeCall, k, s, r, sigma, tl, d1)
	require.NoError(t, err)
	rho, err := Rho(OptionTypeCall, k, r, sigma, tl, d1)
	require.NoError(t, err)

	got, err := CalculateGreeks(m, testNow, decimal.NewNullDecimal(sigma), decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, got.Premium.Decimal.Equal(premium.Mul(factor)))
	assert.True(t, got.Delta.Decimal.Equal(delta.Mul(factor)))
	assert.True(t, got.Gamma.Decimal.Equal(gamma.Mul(factor)))
	assert.True(t, got.Vega.Decimal.Equal(vega.Mul(factor)))
	assert.True(t, got.Theta.Decimal.Equal(theta.Mul(factor)))
	assert.True(t, got.Rho.Decimal.Equal(rho.Mul(factor)))
}

func TestModelKind(t *testing.T) {
	k, err := ParseModelKind("black_76")
	require.NoError(t, err)
	assert.Equal(t, ModelBlack76, k)

	k, err = ParseModelKind("")
	require.NoError(t, err)
	assert.Equal(t, ModelBlackScholes, k)

	_, err = ParseModelKind("binomial")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestExpirationTimeUsesBoardExpiry(t *testing.T) {
	midnight := time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC)
	inst := option("X", "SPOT", OptionTypeCall, "100", midnight)

	got, err := ExpirationTime(inst)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 19, 18, 45, 0, 0, time.UTC), got)

	inst.Board = nil
	_, err = ExpirationTime(inst)
	assert.ErrorIs(t, err, ErrMissingBoard)

	explicit := time.Date(2026, 6, 19, 16, 0, 0, 0, time.UTC)
	inst.ExpiryDate = &explicit
	got, err = ExpirationTime(inst)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	expired, err := IsExpired(inst, explicit.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestImpliedVolatilityDepth(t *testing.T) {
	f := newModelFixture()
	m, err := NewBlackScholes(f.call, f.securities, f.market)
	require.NoError(t, err)

	premium, err := m.Premium(testNow, null("0.3"), decimal.NullDecimal{})
	require.NoError(t, err)

	f.market.depths[f.call.ID] = &MarketDepth{
		InstrumentID: f.call.ID,
		Bids:         []Quote{{Price: premium.Decimal, Volume: dec("5")}},
		Asks:         []Quote{{Price: dec("0.00001"), Volume: dec("1")}},
	}

	depth, err := m.VolatilityDepth(testNow)
	require.NoError(t, err)
	require.NotNil(t, depth)
	require.Len(t, depth.Bids, 1)
	assert.InDelta(t, 30, depth.Bids[0].Price.InexactFloat64(), 0.001)
	assert.True(t, depth.Bids[0].Volume.Equal(dec("5")))
	assert.True(t, depth.Asks[0].Price.IsZero())
}
