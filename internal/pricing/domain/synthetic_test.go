package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticLegs(t *testing.T) {
	f := newModelFixture()

	cases := []struct {
		name      string
		option    *Instrument
		side      Side
		assetSide Side
		opposite  string
	}{
		{name: "buy call", option: f.call, side: SideBuy, assetSide: SideBuy, opposite: f.put.ID},
		{name: "sell call", option: f.call, side: SideSell, assetSide: SideSell, opposite: f.put.ID},
		{name: "buy put", option: f.put, side: SideBuy, assetSide: SideSell, opposite: f.call.ID},
		{name: "sell put", option: f.put, side: SideSell, assetSide: SideBuy, opposite: f.call.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			legs, err := SyntheticLegs(tc.option, tc.side, f.securities)
			require.NoError(t, err)
			require.Len(t, legs, 2)
			assert.Equal(t, "SPOT", legs[0].Instrument.ID)
			assert.Equal(t, tc.assetSide, legs[0].Side)
			assert.Equal(t, tc.opposite, legs[1].Instrument.ID)
			assert.Equal(t, tc.side, legs[1].Side)
		})
	}
}

func TestSyntheticOppositeMissing(t *testing.T) {
	f := newModelFixture()
	lone := option("SPOT-C-120", "SPOT", OptionTypeCall, "120", f.expiry)
	f.securities.add(lone)

	_, err := SyntheticLegs(lone, SideBuy, f.securities)
	assert.ErrorIs(t, err, ErrOppositeOptionNotFound)

	_, err = SyntheticLegs(f.call, Side("HOLD"), f.securities)
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestUnderlyingLegs(t *testing.T) {
	f := newModelFixture()
	s, err := NewSynthetic(f.asset, f.securities)
	require.NoError(t, err)

	legs, err := s.UnderlyingPosition(dec("100"), f.expiry, SideSell)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, f.call.ID, legs[0].Instrument.ID)
	assert.Equal(t, SideSell, legs[0].Side)
	assert.Equal(t, f.put.ID, legs[1].Instrument.ID)
	assert.Equal(t, SideBuy, legs[1].Side)

	_, err = s.UnderlyingPosition(dec("125"), f.expiry, SideBuy)
	assert.ErrorIs(t, err, ErrOptionNotFound)

	opt, err := NewSynthetic(f.call, f.securities)
	require.NoError(t, err)
	buy, err := opt.Buy()
	require.NoError(t, err)
	sell, err := opt.Sell()
	require.NoError(t, err)
	assert.Equal(t, SideBuy, buy[1].Side)
	assert.Equal(t, SideSell, sell[1].Side)
}
