package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type fakeSecurities struct {
	items []*Instrument
}

func (f *fakeSecurities) add(items ...*Instrument) {
	f.items = append(f.items, items...)
}

func (f *fakeSecurities) LookupByID(id string) (*Instrument, bool) {
	for _, i := range f.items {
		if i.ID == id {
			return i, true
		}
	}
	return nil, false
}

func (f *fakeSecurities) Lookup(c Criteria) []*Instrument {
	var out []*Instrument
	for _, i := range f.items {
		if c.Match(i) {
			out = append(out, i)
		}
	}
	return out
}

type fakeMarket struct {
	values map[string]map[Level1Field]decimal.Decimal
	depths map[string]*MarketDepth
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		values: map[string]map[Level1Field]decimal.Decimal{},
		depths: map[string]*MarketDepth{},
	}
}

func (f *fakeMarket) set(id string, field Level1Field, v string) {
	if f.values[id] == nil {
		f.values[id] = map[Level1Field]decimal.Decimal{}
	}
	f.values[id][field] = decimal.RequireFromString(v)
}

func (f *fakeMarket) SecurityValue(inst *Instrument, field Level1Field) (decimal.Decimal, bool) {
	v, ok := f.values[inst.ID][field]
	return v, ok
}

func (f *fakeMarket) MarketDepth(inst *Instrument) (*MarketDepth, bool) {
	d, ok := f.depths[inst.ID]
	return d, ok
}

type fakePositions []Position

func (f fakePositions) Positions() []Position { return f }

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func null(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func stock(id string) *Instrument {
	return &Instrument{ID: id, Code: id, Type: SecurityTypeStock}
}

func option(id, underlying string, t OptionType, strike string, expiry time.Time) *Instrument {
	return &Instrument{
		ID:           id,
		Code:         id,
		Type:         SecurityTypeOption,
		UnderlyingID: underlying,
		OptionType:   t,
		Strike:       null(strike),
		ExpiryDate:   &expiry,
		Board:        &ExchangeBoard{Code: "TEST", ExpiryTime: 18*time.Hour + 45*time.Minute},
	}
}
