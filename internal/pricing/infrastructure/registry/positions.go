package registry

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

type positionKey struct {
	portfolio  string
	instrument string
}

// PositionBook 按组合与证券记录的持仓簿
type PositionBook struct {
	mu    sync.RWMutex
	order []positionKey
	byKey map[positionKey]decimal.Decimal
}

var _ domain.PositionProvider = (*PositionBook)(nil)

func NewPositionBook() *PositionBook {
	return &PositionBook{byKey: make(map[positionKey]decimal.Decimal)}
}

// Set 覆盖持仓数量；数量为零时删除
func (b *PositionBook) Set(p domain.Position) {
	key := positionKey{portfolio: p.PortfolioName, instrument: p.InstrumentID}
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.CurrentValue.IsZero() {
		if _, ok := b.byKey[key]; ok {
			delete(b.byKey, key)
			for i, k := range b.order {
				if k == key {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		}
		return
	}
	if _, ok := b.byKey[key]; !ok {
		b.order = append(b.order, key)
	}
	b.byKey[key] = p.CurrentValue
}

// Positions 当前持仓快照
func (b *PositionBook) Positions() []domain.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Position, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, domain.Position{
			InstrumentID:  k.instrument,
			PortfolioName: k.portfolio,
			CurrentValue:  b.byKey[k],
		})
	}
	return out
}
