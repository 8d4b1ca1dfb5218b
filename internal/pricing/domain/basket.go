package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Basket 期权篮子：各腿希腊字母按实时持仓加权求和。
// 腿列表由互斥锁保护，查询先取快照再迭代，不在持锁期间调用外部提供者。
type Basket struct {
	securities SecurityProvider
	marketData MarketDataProvider
	positions  PositionProvider

	mu            sync.RWMutex
	legs          []*BlackScholes
	riskFree      decimal.Decimal
	dividend      decimal.Decimal
	dividendSet   bool
	roundDecimals int

	underlying lazyInstrument
}

var _ Model = (*Basket)(nil)

// NewBasket 创建空篮子
func NewBasket(securities SecurityProvider, marketData MarketDataProvider, positions PositionProvider) (*Basket, error) {
	if marketData == nil {
		return nil, fmt.Errorf("%w: market data provider", ErrNilProvider)
	}
	if positions == nil {
		return nil, fmt.Errorf("%w: position provider", ErrNilProvider)
	}
	return &Basket{
		securities:    securities,
		marketData:    marketData,
		positions:     positions,
		roundDecimals: -1,
	}, nil
}

// AddLeg 以篮子当前的利率、分红与取整精度创建并加入一条腿
func (b *Basket) AddLeg(option *Instrument, kind ModelKind) (*BlackScholes, error) {
	if err := option.CheckOption(); err != nil {
		return nil, err
	}
	formula, err := kind.Formula()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, leg := range b.legs {
		if leg.option.ID == option.ID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLeg, option.ID)
		}
	}
	if want := b.expectedUnderlyingID(); want != "" && option.UnderlyingID != want {
		return nil, fmt.Errorf("%w: %s has underlying %s, basket has %s", ErrLegMismatch, option.ID, option.UnderlyingID, want)
	}

	leg, err := newModel(option, b.securities, b.marketData, formula)
	if err != nil {
		return nil, err
	}
	leg.SetRiskFree(b.riskFree)
	dividend := b.dividend
	if kind == ModelBlack76 && !b.dividendSet {
		dividend = decimal.Zero
	}
	if err := leg.SetDividend(dividend); err != nil {
		return nil, err
	}
	leg.roundDecimals.Store(int32(b.roundDecimals))
	if asset := b.underlying.peek(); asset != nil {
		leg.SetUnderlyingAsset(asset)
	}

	b.legs = append(b.legs, leg)
	return leg, nil
}

// expectedUnderlyingID 调用方须持有锁
func (b *Basket) expectedUnderlyingID() string {
	if asset := b.underlying.peek(); asset != nil {
		return asset.ID
	}
	if len(b.legs) > 0 {
		return b.legs[0].option.UnderlyingID
	}
	return ""
}

// RemoveLeg 移除一条腿
func (b *Basket) RemoveLeg(optionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, leg := range b.legs {
		if leg.option.ID == optionID {
			b.legs = append(b.legs[:i], b.legs[i+1:]...)
			return true
		}
	}
	return false
}

// Leg 按期权 ID 查找腿
func (b *Basket) Leg(optionID string) (*BlackScholes, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, leg := range b.legs {
		if leg.option.ID == optionID {
			return leg, true
		}
	}
	return nil, false
}

// Legs 返回按插入顺序的腿快照
func (b *Basket) Legs() []*BlackScholes {
	b.mu.RLock()
	defer b.mu.RUnlock()
	legs := make([]*BlackScholes, len(b.legs))
	copy(legs, b.legs)
	return legs
}

func (b *Basket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.legs)
}

func (b *Basket) RoundDecimals() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.roundDecimals
}

// SetRoundDecimals 在同一把锁内更新篮子与全部现有腿
func (b *Basket) SetRoundDecimals(v int) error {
	if err := checkRoundDecimals(v); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roundDecimals = v
	for _, leg := range b.legs {
		leg.roundDecimals.Store(int32(v))
	}
	return nil
}

func (b *Basket) RiskFree() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.riskFree
}

// SetRiskFree 仅作用于之后加入的腿
func (b *Basket) SetRiskFree(v decimal.Decimal) {
	b.mu.Lock()
	b.riskFree = v
	b.mu.Unlock()
}

func (b *Basket) Dividend() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dividend
}

// SetDividend 仅作用于之后加入的腿；Black-76 腿的分红率必须为 0
func (b *Basket) SetDividend(v decimal.Decimal) {
	b.mu.Lock()
	b.dividend = v
	b.dividendSet = true
	b.mu.Unlock()
}

// SetDefaultDividend 设置默认分红率，之后加入的 Black-76 腿按 0 处理
func (b *Basket) SetDefaultDividend(v decimal.Decimal) {
	b.mu.Lock()
	b.dividend = v
	b.dividendSet = false
	b.mu.Unlock()
}

// UnderlyingAsset 未显式指定时取第一条腿的标的
func (b *Basket) UnderlyingAsset() (*Instrument, error) {
	if asset := b.underlying.peek(); asset != nil {
		return asset, nil
	}
	// 先取快照，避免与 AddLeg 的加锁顺序相反
	legs := b.Legs()
	return b.underlying.get(func() (*Instrument, error) {
		if len(legs) == 0 {
			return nil, ErrNoOptions
		}
		return legs[0].UnderlyingAsset()
	})
}

// SetUnderlyingAsset 显式指定篮子标的
func (b *Basket) SetUnderlyingAsset(asset *Instrument) {
	b.underlying.set(asset)
}

// aggregate 跳过无隐含波动率或无值的腿，其余累加；weighted 时乘以该腿持仓
func (b *Basket) aggregate(weighted bool, value func(leg *BlackScholes) (decimal.NullDecimal, error)) (decimal.Decimal, error) {
	legs := b.Legs()
	var positions []Position
	if weighted {
		positions = b.positions.Positions()
	}

	total := decimal.Zero
	for _, leg := range legs {
		if _, ok := b.marketData.SecurityValue(leg.option, FieldImpliedVolatility); !ok {
			continue
		}
		v, err := value(leg)
		if err != nil {
			return decimal.Zero, err
		}
		if !v.Valid {
			continue
		}
		if weighted {
			total = total.Add(v.Decimal.Mul(PositionSize(positions, leg.option.ID)))
		} else {
			total = total.Add(v.Decimal)
		}
	}
	return total, nil
}

func (b *Basket) greek(calc func(leg *BlackScholes) (decimal.NullDecimal, error)) (decimal.NullDecimal, error) {
	total, err := b.aggregate(true, calc)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(total), nil
}

func (b *Basket) Premium(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return b.greek(func(leg *BlackScholes) (decimal.NullDecimal, error) {
		return leg.Premium(now, deviation, assetPrice)
	})
}

// Delta 在加权和之上叠加标的资产的直接持仓
func (b *Basket) Delta(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	asset, err := b.UnderlyingAsset()
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	direct := PositionSize(b.positions.Positions(), asset.ID)

	total, err := b.aggregate(true, func(leg *BlackScholes) (decimal.NullDecimal, error) {
		return leg.Delta(now, deviation, assetPrice)
	})
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(total.Add(direct)), nil
}

func (b *Basket) Gamma(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return b.greek(func(leg *BlackScholes) (decimal.NullDecimal, error) {
		return leg.Gamma(now, deviation, assetPrice)
	})
}

func (b *Basket) Vega(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return b.greek(func(leg *BlackScholes) (decimal.NullDecimal, error) {
		return leg.Vega(now, deviation, assetPrice)
	})
}

func (b *Basket) Theta(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return b.greek(func(leg *BlackScholes) (decimal.NullDecimal, error) {
		return leg.Theta(now, deviation, assetPrice)
	})
}

func (b *Basket) Rho(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return b.greek(func(leg *BlackScholes) (decimal.NullDecimal, error) {
		return leg.Rho(now, deviation, assetPrice)
	})
}

// ImpliedVolatility 各腿隐含波动率的不加权和，仅用于诊断
func (b *Basket) ImpliedVolatility(now time.Time, premium decimal.Decimal) (decimal.NullDecimal, error) {
	total, err := b.aggregate(false, func(leg *BlackScholes) (decimal.NullDecimal, error) {
		return leg.ImpliedVolatility(now, premium)
	})
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(total), nil
}
