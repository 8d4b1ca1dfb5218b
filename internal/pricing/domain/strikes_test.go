package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(underlying string, expiry time.Time, strikes ...string) []*Instrument {
	var out []*Instrument
	for _, k := range strikes {
		out = append(out, option(underlying+"-C-"+k, underlying, OptionTypeCall, k, expiry))
	}
	for _, k := range strikes {
		out = append(out, option(underlying+"-P-"+k, underlying, OptionTypePut, k, expiry))
	}
	return out
}

func strikesOf(instruments []*Instrument, t OptionType) []string {
	var out []string
	for _, i := range FilterByType(instruments, t) {
		out = append(out, i.Strike.Decimal.String())
	}
	return out
}

func TestCentralStrike(t *testing.T) {
	expiry := testNow.AddDate(0, 1, 0)
	a := option("A", "X", OptionTypeCall, "98", expiry)
	b := option("B", "X", OptionTypeCall, "102", expiry)

	got, ok := CentralStrike([]*Instrument{a, b}, dec("100"))
	require.True(t, ok)
	assert.Equal(t, "A", got.ID)

	got, ok = CentralStrike([]*Instrument{b, a}, dec("100"))
	require.True(t, ok)
	assert.Equal(t, "B", got.ID)

	_, ok = CentralStrike(nil, dec("100"))
	assert.False(t, ok)

	unstruck := &Instrument{ID: "U", Type: SecurityTypeOption}
	_, ok = CentralStrike([]*Instrument{unstruck}, dec("100"))
	assert.False(t, ok)

	market := newFakeMarket()
	_, ok = CentralStrikeOf(stock("X"), market, []*Instrument{a, b})
	assert.False(t, ok)
	market.set("X", FieldBestBidPrice, "101")
	market.set("X", FieldBestAskPrice, "103")
	got, ok = CentralStrikeOf(stock("X"), market, []*Instrument{a, b})
	require.True(t, ok)
	assert.Equal(t, "B", got.ID)
}

func TestClassifyStrikes(t *testing.T) {
	candidates := chain("X", testNow.AddDate(0, 1, 0), "90", "95", "100", "105", "110")
	res := ClassifyStrikes(candidates, dec("101"))

	assert.Equal(t, []string{"105", "110"}, strikesOf(res.OutOfTheMoney, OptionTypeCall))
	assert.Equal(t, []string{"90", "95"}, strikesOf(res.OutOfTheMoney, OptionTypePut))
	assert.Equal(t, []string{"90", "95"}, strikesOf(res.InTheMoney, OptionTypeCall))
	assert.Equal(t, []string{"105", "110"}, strikesOf(res.InTheMoney, OptionTypePut))
	require.Len(t, res.AtTheMoney, 2)
	assert.Equal(t, "X-C-100", res.AtTheMoney[0].ID)
	assert.Equal(t, "X-P-100", res.AtTheMoney[1].ID)

	callsOnly := FilterByType(candidates, OptionTypeCall)
	assert.Len(t, AtTheMoney(callsOnly, dec("101")), 1)
	assert.Empty(t, OutOfTheMoney(nil, dec("101")))
	assert.Len(t, InTheMoney(candidates, dec("101")), 4)
}

func TestStrikeStep(t *testing.T) {
	near := testNow.AddDate(0, 1, 0)
	far := testNow.AddDate(0, 2, 0)
	securities := &fakeSecurities{}
	underlying := stock("X")
	securities.add(underlying)
	securities.add(chain("X", far, "80", "90", "100")...)
	securities.add(chain("X", near, "100", "97.5", "95", "95")...)

	step, err := StrikeStep(underlying, securities, nil)
	require.NoError(t, err)
	assert.True(t, step.Equal(dec("2.5")), step.String())

	step, err = StrikeStep(underlying, securities, &far)
	require.NoError(t, err)
	assert.True(t, step.Equal(dec("10")))

	lonely := &fakeSecurities{}
	lonely.add(underlying, option("X-C-1", "X", OptionTypeCall, "100", near))
	_, err = StrikeStep(underlying, lonely, nil)
	assert.ErrorIs(t, err, ErrStrikeStep)

	_, err = StrikeStep(underlying, &fakeSecurities{}, nil)
	assert.ErrorIs(t, err, ErrStrikeStep)
}

func TestOffsetStrikeRule(t *testing.T) {
	candidates := chain("X", testNow.AddDate(0, 1, 0), "90", "95", "100", "105", "110")
	rule, err := NewOffsetStrikeRuleWithStep(OffsetRange{Min: 0, Max: 1}, dec("5"))
	require.NoError(t, err)

	got, err := rule.FilterStrikes(candidates, dec("101"))
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "105"}, strikesOf(got, OptionTypeCall))
	assert.Equal(t, []string{"95", "100"}, strikesOf(got, OptionTypePut))
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Strike.Decimal.LessThanOrEqual(got[i].Strike.Decimal))
	}

	empty, err := rule.FilterStrikes(nil, dec("101"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOffsetStrikeRuleCachesStep(t *testing.T) {
	expiry := testNow.AddDate(0, 1, 0)
	securities := &fakeSecurities{}
	underlying := stock("X")
	securities.add(underlying)
	securities.add(chain("X", expiry, "90", "95", "100", "105", "110")...)

	rule, err := NewOffsetStrikeRule(OffsetRange{Min: -1, Max: 1}, underlying, securities, nil)
	require.NoError(t, err)
	step, err := rule.StrikeStep()
	require.NoError(t, err)
	assert.True(t, step.Equal(dec("5")))

	securities.add(chain("X", testNow.AddDate(0, 0, 7), "99", "100")...)
	step, err = rule.StrikeStep()
	require.NoError(t, err)
	assert.True(t, step.Equal(dec("5")), "step is computed once")

	got, err := rule.FilterStrikes(FilterByExpiry(securities.items, expiry), dec("100"))
	require.NoError(t, err)
	assert.Equal(t, []string{"95", "100", "105"}, strikesOf(got, OptionTypeCall))
	assert.Equal(t, []string{"95", "100", "105"}, strikesOf(got, OptionTypePut))
}

func TestVolatilityStrikeRule(t *testing.T) {
	candidates := chain("X", testNow.AddDate(0, 1, 0), "90", "100", "110")
	market := newFakeMarket()
	market.set("X-C-90", FieldImpliedVolatility, "35")
	market.set("X-C-100", FieldImpliedVolatility, "20")
	market.set("X-C-110", FieldImpliedVolatility, "18")
	market.set("X-P-90", FieldImpliedVolatility, "15")

	rule, err := NewVolatilityStrikeRule(VolatilityRange{Min: dec("15"), Max: dec("20")}, market)
	require.NoError(t, err)
	got, err := rule.FilterStrikes(candidates, decimal.Zero)
	require.NoError(t, err)

	var ids []string
	for _, i := range got {
		ids = append(ids, i.ID)
	}
	assert.Equal(t, []string{"X-C-100", "X-C-110", "X-P-90"}, ids)
}

func TestStrikeRuleTextForm(t *testing.T) {
	for _, text := range []string{"offset|0:1", "offset|-2:3", "volatility|15:35", "volatility|0.15:0.35"} {
		t.Run(text, func(t *testing.T) {
			spec, err := ParseStrikeRule(text)
			require.NoError(t, err)
			assert.Equal(t, text, spec.String())
		})
	}

	r, err := ParseOffsetRange(" 1 : 4 ")
	require.NoError(t, err)
	assert.Equal(t, OffsetRange{Min: 1, Max: 4}, r)
	assert.Equal(t, "1:4", r.String())

	for _, bad := range []string{"offset|2:1", "offset|a:1", "offset|1", "volatility|30:10"} {
		_, err := ParseStrikeRule(bad)
		assert.ErrorIs(t, err, ErrInvalidRange, bad)
	}
	_, err = ParseStrikeRule("delta|1:2")
	assert.ErrorIs(t, err, ErrUnknownStrikeRule)
	_, err = ParseStrikeRule("offset")
	assert.ErrorIs(t, err, ErrUnknownStrikeRule)
}

func TestIntrinsicAndTimeValue(t *testing.T) {
	f := newModelFixture()
	f.market.set("SPOT", FieldLastTradePrice, "104")
	f.market.set(f.call.ID, FieldLastTradePrice, "6.5")
	f.market.set(f.put.ID, FieldLastTradePrice, "1.25")

	v, err := IntrinsicValue(f.call, f.securities, f.market)
	require.NoError(t, err)
	assert.True(t, v.Decimal.Equal(dec("4")))

	v, err = IntrinsicValue(f.put, f.securities, f.market)
	require.NoError(t, err)
	assert.True(t, v.Decimal.IsZero())

	v, err = TimeValue(f.call, f.securities, f.market)
	require.NoError(t, err)
	assert.True(t, v.Decimal.Equal(dec("2.5")))

	v, err = TimeValue(f.put, f.securities, f.market)
	require.NoError(t, err)
	assert.True(t, v.Decimal.Equal(dec("1.25")))

	_, err = IntrinsicValue(f.asset, f.securities, f.market)
	assert.ErrorIs(t, err, ErrNotOption)
}
