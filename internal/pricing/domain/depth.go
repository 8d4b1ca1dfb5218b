package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImpliedVolatilityDepth 将价格订单簿转换为隐含波动率订单簿，无值的档位价格记为 0
func ImpliedVolatilityDepth(depth *MarketDepth, model Model, now time.Time) (*MarketDepth, error) {
	if depth == nil {
		return nil, nil
	}
	bids, err := volatilityQuotes(depth.Bids, model, now)
	if err != nil {
		return nil, err
	}
	asks, err := volatilityQuotes(depth.Asks, model, now)
	if err != nil {
		return nil, err
	}
	return &MarketDepth{
		InstrumentID:   depth.InstrumentID,
		Bids:           bids,
		Asks:           asks,
		LastChangeTime: depth.LastChangeTime,
	}, nil
}

func volatilityQuotes(quotes []Quote, model Model, now time.Time) ([]Quote, error) {
	out := make([]Quote, len(quotes))
	for i, q := range quotes {
		iv, err := model.ImpliedVolatility(now, q.Price)
		if err != nil {
			return nil, err
		}
		out[i] = Quote{Price: decimal.Zero, Volume: q.Volume}
		if iv.Valid {
			out[i].Price = iv.Decimal
		}
	}
	return out, nil
}

// VolatilityDepth 取期权当前订单簿并转换，订单簿未知时返回 nil
func (m *BlackScholes) VolatilityDepth(now time.Time) (*MarketDepth, error) {
	depth, ok := m.marketData.MarketDepth(m.option)
	if !ok {
		return nil, nil
	}
	return ImpliedVolatilityDepth(depth, m, now)
}
