package registry

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

// Level1Store 一档行情与订单簿快照
type Level1Store struct {
	mu     sync.RWMutex
	values map[string]map[domain.Level1Field]decimal.Decimal
	depths map[string]*domain.MarketDepth
}

var _ domain.MarketDataProvider = (*Level1Store)(nil)

func NewLevel1Store() *Level1Store {
	return &Level1Store{
		values: make(map[string]map[domain.Level1Field]decimal.Decimal),
		depths: make(map[string]*domain.MarketDepth),
	}
}

// Set 写入字段值，返回写入前的值
func (s *Level1Store) Set(instrumentID string, field domain.Level1Field, value decimal.Decimal) decimal.NullDecimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.values[instrumentID]
	if !ok {
		fields = make(map[domain.Level1Field]decimal.Decimal)
		s.values[instrumentID] = fields
	}
	old, had := fields[field]
	fields[field] = value
	if !had {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(old)
}

// Clear 删除字段值，之后该字段视为未知
func (s *Level1Store) Clear(instrumentID string, field domain.Level1Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fields, ok := s.values[instrumentID]; ok {
		delete(fields, field)
	}
}

// SetDepth 替换订单簿快照
func (s *Level1Store) SetDepth(depth *domain.MarketDepth) {
	if depth == nil {
		return
	}
	cp := *depth
	cp.Bids = append([]domain.Quote(nil), depth.Bids...)
	cp.Asks = append([]domain.Quote(nil), depth.Asks...)
	s.mu.Lock()
	s.depths[cp.InstrumentID] = &cp
	s.mu.Unlock()
}

func (s *Level1Store) SecurityValue(inst *domain.Instrument, field domain.Level1Field) (decimal.Decimal, bool) {
	if inst == nil {
		return decimal.Zero, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[inst.ID][field]
	return v, ok
}

func (s *Level1Store) MarketDepth(inst *domain.Instrument) (*domain.MarketDepth, bool) {
	if inst == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depths[inst.ID]
	return d, ok
}
