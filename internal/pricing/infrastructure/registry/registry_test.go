package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

func option(id string, typ domain.OptionType, strike int64) *domain.Instrument {
	expiry := time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC)
	return &domain.Instrument{
		ID:           id,
		Type:         domain.SecurityTypeOption,
		UnderlyingID: "SPOT",
		OptionType:   typ,
		Strike:       decimal.NewNullDecimal(decimal.NewFromInt(strike)),
		ExpiryDate:   &expiry,
	}
}

func TestInstrumentRegistryKeepsOrder(t *testing.T) {
	r := NewInstrumentRegistry()
	r.Put(&domain.Instrument{ID: "SPOT", Type: domain.SecurityTypeStock})
	r.Put(option("C110", domain.OptionTypeCall, 110))
	r.Put(option("C100", domain.OptionTypeCall, 100))
	r.Put(option("P100", domain.OptionTypePut, 100))

	calls := r.Lookup(domain.Criteria{Type: domain.SecurityTypeOption, OptionType: domain.OptionTypeCall})
	require.Len(t, calls, 2)
	assert.Equal(t, "C110", calls[0].ID)
	assert.Equal(t, "C100", calls[1].ID)

	// 替换不改变顺序
	r.Put(option("C110", domain.OptionTypeCall, 115))
	calls = r.Lookup(domain.Criteria{OptionType: domain.OptionTypeCall})
	assert.Equal(t, "C110", calls[0].ID)
	assert.True(t, calls[0].Strike.Decimal.Equal(decimal.NewFromInt(115)))

	assert.True(t, r.Remove("C110"))
	assert.False(t, r.Remove("C110"))
	_, ok := r.LookupByID("C110")
	assert.False(t, ok)
	assert.Equal(t, 3, r.Len())
}

func TestInstrumentRegistryCopiesInput(t *testing.T) {
	r := NewInstrumentRegistry()
	in := option("C100", domain.OptionTypeCall, 100)
	r.Put(in)
	in.Code = "mutated"

	got, ok := r.LookupByID("C100")
	require.True(t, ok)
	assert.Empty(t, got.Code)
}

func TestLevel1Store(t *testing.T) {
	s := NewLevel1Store()
	inst := &domain.Instrument{ID: "C100"}

	_, ok := s.SecurityValue(inst, domain.FieldImpliedVolatility)
	assert.False(t, ok)

	old := s.Set("C100", domain.FieldImpliedVolatility, decimal.NewFromInt(30))
	assert.False(t, old.Valid)
	old = s.Set("C100", domain.FieldImpliedVolatility, decimal.NewFromInt(32))
	require.True(t, old.Valid)
	assert.True(t, old.Decimal.Equal(decimal.NewFromInt(30)))

	v, ok := s.SecurityValue(inst, domain.FieldImpliedVolatility)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(32)))

	s.Clear("C100", domain.FieldImpliedVolatility)
	_, ok = s.SecurityValue(inst, domain.FieldImpliedVolatility)
	assert.False(t, ok)

	s.SetDepth(&domain.MarketDepth{InstrumentID: "C100", Bids: []domain.Quote{{Price: decimal.NewFromInt(5)}}})
	depth, ok := s.MarketDepth(inst)
	require.True(t, ok)
	assert.Len(t, depth.Bids, 1)
}

func TestPositionBook(t *testing.T) {
	b := NewPositionBook()
	b.Set(domain.Position{InstrumentID: "C100", PortfolioName: "main", CurrentValue: decimal.NewFromInt(10)})
	b.Set(domain.Position{InstrumentID: "C100", PortfolioName: "hedge", CurrentValue: decimal.NewFromInt(-4)})
	b.Set(domain.Position{InstrumentID: "C100", PortfolioName: "main", CurrentValue: decimal.NewFromInt(12)})

	positions := b.Positions()
	require.Len(t, positions, 2)
	assert.True(t, domain.PositionSize(positions, "C100").Equal(decimal.NewFromInt(8)))

	b.Set(domain.Position{InstrumentID: "C100", PortfolioName: "hedge"})
	assert.Len(t, b.Positions(), 1)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewLevel1Store()
	r := NewInstrumentRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Set("C100", domain.FieldLastTradePrice, decimal.NewFromInt(int64(i)))
			r.Put(option("C100", domain.OptionTypeCall, 100))
		}(i)
		go func() {
			defer wg.Done()
			s.SecurityValue(&domain.Instrument{ID: "C100"}, domain.FieldLastTradePrice)
			r.Lookup(domain.Criteria{UnderlyingID: "SPOT"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())
}
