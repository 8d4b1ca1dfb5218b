package domain

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Model 定价模型的查询面，单个期权与篮子均实现
type Model interface {
	Premium(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error)
	Delta(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error)
	Gamma(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error)
	Vega(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error)
	Theta(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error)
	Rho(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error)
	ImpliedVolatility(now time.Time, premium decimal.Decimal) (decimal.NullDecimal, error)
}

// ModelKind 定价模型类型
type ModelKind string

const (
	ModelBlackScholes ModelKind = "BLACK_SCHOLES" // 现货期权
	ModelBlack76      ModelKind = "BLACK_76"      // 期货期权
)

// ParseModelKind 解析模型名称，空串视为 Black-Scholes
func ParseModelKind(s string) (ModelKind, error) {
	switch ModelKind(strings.ToUpper(strings.TrimSpace(s))) {
	case "", ModelBlackScholes:
		return ModelBlackScholes, nil
	case ModelBlack76:
		return ModelBlack76, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// Formula 返回模型对应的公式集
func (k ModelKind) Formula() (Formula, error) {
	switch k {
	case ModelBlackScholes:
		return SpotFormula{}, nil
	case ModelBlack76:
		return FuturesFormula{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, string(k))
}

// Formula 两种模型共用同一组希腊字母公式，仅 d1、外层折现与分红约束不同
type Formula interface {
	Kind() ModelKind
	D1(assetPrice, strike, riskFree, dividend, deviation decimal.Decimal, t float64) (float64, error)
	// Discount 结果额外乘以的折现因子
	Discount(riskFree decimal.Decimal, t float64) float64
	CheckDividend(dividend decimal.Decimal) error
}

// SpotFormula Black-Scholes
type SpotFormula struct{}

func (SpotFormula) Kind() ModelKind { return ModelBlackScholes }

func (SpotFormula) D1(assetPrice, strike, riskFree, dividend, deviation decimal.Decimal, t float64) (float64, error) {
	return D1(assetPrice, strike, riskFree, dividend, deviation, t)
}

func (SpotFormula) Discount(decimal.Decimal, float64) float64 { return 1 }

func (SpotFormula) CheckDividend(decimal.Decimal) error { return nil }

// FuturesFormula Black-76：d1 中 r = q = 0，所有结果再乘一次 exp(-rT)
type FuturesFormula struct{}

func (FuturesFormula) Kind() ModelKind { return ModelBlack76 }

func (FuturesFormula) D1(assetPrice, strike, _, _, deviation decimal.Decimal, t float64) (float64, error) {
	return D1(assetPrice, strike, decimal.Zero, decimal.Zero, deviation, t)
}

func (FuturesFormula) Discount(riskFree decimal.Decimal, t float64) float64 {
	return ExpRate(riskFree, t)
}

func (FuturesFormula) CheckDividend(dividend decimal.Decimal) error {
	if !dividend.IsZero() {
		return fmt.Errorf("%w: %s", ErrFuturesDividend, dividend)
	}
	return nil
}

// lazyInstrument 首次访问时解析并缓存，之后不再失效
type lazyInstrument struct {
	mu    sync.Mutex
	value *Instrument
}

func (l *lazyInstrument) get(resolve func() (*Instrument, error)) (*Instrument, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.value != nil {
		return l.value, nil
	}
	v, err := resolve()
	if err != nil {
		return nil, err
	}
	l.value = v
	return v, nil
}

func (l *lazyInstrument) set(v *Instrument) {
	l.mu.Lock()
	l.value = v
	l.mu.Unlock()
}

func (l *lazyInstrument) peek() *Instrument {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// BlackScholes 单个期权的定价模型。
// 查询可并发；RiskFree、Dividend 的修改需由调用方串行化。
type BlackScholes struct {
	option     *Instrument
	securities SecurityProvider
	marketData MarketDataProvider
	formula    Formula

	riskFree      decimal.Decimal
	dividend      decimal.Decimal
	roundDecimals atomic.Int32

	underlying lazyInstrument
}

var _ Model = (*BlackScholes)(nil)

// NewBlackScholes 创建现货期权模型
func NewBlackScholes(option *Instrument, securities SecurityProvider, marketData MarketDataProvider) (*BlackScholes, error) {
	return newModel(option, securities, marketData, SpotFormula{})
}

// NewBlack76 创建期货期权模型
func NewBlack76(option *Instrument, securities SecurityProvider, marketData MarketDataProvider) (*BlackScholes, error) {
	return newModel(option, securities, marketData, FuturesFormula{})
}

// NewModel 按类型创建模型
func NewModel(kind ModelKind, option *Instrument, securities SecurityProvider, marketData MarketDataProvider) (*BlackScholes, error) {
	formula, err := kind.Formula()
	if err != nil {
		return nil, err
	}
	return newModel(option, securities, marketData, formula)
}

func newModel(option *Instrument, securities SecurityProvider, marketData MarketDataProvider, formula Formula) (*BlackScholes, error) {
	if option == nil {
		return nil, ErrNilInstrument
	}
	if !option.IsOption() {
		return nil, fmt.Errorf("%w: %s", ErrNotOption, option.ID)
	}
	if marketData == nil {
		return nil, fmt.Errorf("%w: market data provider", ErrNilProvider)
	}
	m := &BlackScholes{
		option:     option,
		securities: securities,
		marketData: marketData,
		formula:    formula,
	}
	m.roundDecimals.Store(-1)
	return m, nil
}

func (m *BlackScholes) Option() *Instrument { return m.option }

func (m *BlackScholes) Kind() ModelKind { return m.formula.Kind() }

func (m *BlackScholes) RiskFree() decimal.Decimal { return m.riskFree }

func (m *BlackScholes) SetRiskFree(v decimal.Decimal) { m.riskFree = v }

func (m *BlackScholes) Dividend() decimal.Decimal { return m.dividend }

// SetDividend 期货模型只接受 0
func (m *BlackScholes) SetDividend(v decimal.Decimal) error {
	if err := m.formula.CheckDividend(v); err != nil {
		return err
	}
	m.dividend = v
	return nil
}

func (m *BlackScholes) RoundDecimals() int { return int(m.roundDecimals.Load()) }

// SetRoundDecimals -1 表示不取整
func (m *BlackScholes) SetRoundDecimals(v int) error {
	if err := checkRoundDecimals(v); err != nil {
		return err
	}
	m.roundDecimals.Store(int32(v))
	return nil
}

func checkRoundDecimals(v int) error {
	if v < -1 || v > 1<<16 {
		return fmt.Errorf("%w: %d", ErrInvalidRoundDecimals, v)
	}
	return nil
}

// UnderlyingAsset 首次访问时从期权的标的引用解析
func (m *BlackScholes) UnderlyingAsset() (*Instrument, error) {
	return m.underlying.get(func() (*Instrument, error) {
		return UnderlyingAsset(m.option, m.securities)
	})
}

// SetUnderlyingAsset 显式指定标的
func (m *BlackScholes) SetUnderlyingAsset(asset *Instrument) {
	m.underlying.set(asset)
}

// DefaultDeviation 期权的实时隐含波动率 / 100，未知时为 0
func (m *BlackScholes) DefaultDeviation() decimal.Decimal {
	iv, ok := m.marketData.SecurityValue(m.option, FieldImpliedVolatility)
	if !ok {
		return decimal.Zero
	}
	return iv.Div(hundred)
}

// AssetPrice 标的价格：优先使用传入值，否则取标的最新成交价
func (m *BlackScholes) AssetPrice(override decimal.NullDecimal) (decimal.NullDecimal, error) {
	if override.Valid {
		return override, nil
	}
	asset, err := m.UnderlyingAsset()
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	v, ok := m.marketData.SecurityValue(asset, FieldLastTradePrice)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(v), nil
}

// ExpirationTimeLine 距到期的年化时间
func (m *BlackScholes) ExpirationTimeLine(now time.Time) (float64, bool, error) {
	expiry, err := ExpirationTime(m.option)
	if err != nil {
		return 0, false, err
	}
	t, ok := ExpirationTimeLine(expiry, now)
	return t, ok, nil
}

type evaluation struct {
	optionType OptionType
	strike     decimal.Decimal
	assetPrice decimal.Decimal
	deviation  decimal.Decimal
	t          float64
	d1         float64
}

// prepare 行情不足时返回 nil, nil
func (m *BlackScholes) prepare(now time.Time, deviation, assetPrice decimal.NullDecimal) (*evaluation, error) {
	if err := m.option.CheckOption(); err != nil {
		return nil, err
	}
	strike, err := m.option.CheckStrike()
	if err != nil {
		return nil, err
	}

	dev := m.DefaultDeviation()
	if deviation.Valid {
		dev = deviation.Decimal
	}

	price, err := m.AssetPrice(assetPrice)
	if err != nil || !price.Valid {
		return nil, err
	}

	t, ok, err := m.ExpirationTimeLine(now)
	if err != nil || !ok {
		return nil, err
	}

	d1, err := m.formula.D1(price.Decimal, strike, m.riskFree, m.dividend, dev, t)
	if err != nil {
		return nil, err
	}

	return &evaluation{
		optionType: m.option.OptionType,
		strike:     strike,
		assetPrice: price.Decimal,
		deviation:  dev,
		t:          t,
		d1:         d1,
	}, nil
}

func (m *BlackScholes) evaluate(now time.Time, deviation, assetPrice decimal.NullDecimal, calc func(e *evaluation) (decimal.Decimal, error)) (decimal.NullDecimal, error) {
	e, err := m.prepare(now, deviation, assetPrice)
	if err != nil || e == nil {
		return decimal.NullDecimal{}, err
	}
	v, err := calc(e)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("option %s: %w", m.option.ID, err)
	}
	if discount := m.formula.Discount(m.riskFree, e.t); discount != 1 {
		factor, err := toDecimal(discount)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		v = v.Mul(factor)
	}
	return decimal.NewNullDecimal(m.round(v)), nil
}

func (m *BlackScholes) round(v decimal.Decimal) decimal.Decimal {
	if rd := m.roundDecimals.Load(); rd >= 0 {
		return v.RoundBank(rd)
	}
	return v
}

func (m *BlackScholes) Premium(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return m.evaluate(now, deviation, assetPrice, func(e *evaluation) (decimal.Decimal, error) {
		return Premium(e.optionType, e.strike, e.assetPrice, m.riskFree, m.dividend, e.deviation, e.t, e.d1)
	})
}

func (m *BlackScholes) Delta(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return m.evaluate(now, deviation, assetPrice, func(e *evaluation) (decimal.Decimal, error) {
		return Delta(e.optionType, e.d1)
	})
}

func (m *BlackScholes) Gamma(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return m.evaluate(now, deviation, assetPrice, func(e *evaluation) (decimal.Decimal, error) {
		return Gamma(e.assetPrice, e.deviation, e.t, e.d1)
	})
}

func (m *BlackScholes) Vega(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return m.evaluate(now, deviation, assetPrice, func(e *evaluation) (decimal.Decimal, error) {
		return Vega(e.assetPrice, e.t, e.d1)
	})
}

func (m *BlackScholes) Theta(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return m.evaluate(now, deviation, assetPrice, func(e *evaluation) (decimal.Decimal, error) {
		return Theta(e.optionType, e.strike, e.assetPrice, m.riskFree, e.deviation, e.t, e.d1)
	})
}

func (m *BlackScholes) Rho(now time.Time, deviation, assetPrice decimal.NullDecimal) (decimal.NullDecimal, error) {
	return m.evaluate(now, deviation, assetPrice, func(e *evaluation) (decimal.Decimal, error) {
		return Rho(e.optionType, e.strike, m.riskFree, e.deviation, e.t, e.d1)
	})
}

// ImpliedVolatility 由市场价格反解隐含波动率（百分比）
func (m *BlackScholes) ImpliedVolatility(now time.Time, premium decimal.Decimal) (decimal.NullDecimal, error) {
	iv, err := ImpliedVolatility(premium, func(deviation decimal.Decimal) (decimal.NullDecimal, error) {
		return m.Premium(now, decimal.NewNullDecimal(deviation), decimal.NullDecimal{})
	})
	if err != nil || !iv.Valid {
		return iv, err
	}
	return decimal.NewNullDecimal(m.round(iv.Decimal)), nil
}

// CalculateGreeks 计算理论价与全部希腊字母
func CalculateGreeks(m Model, now time.Time, deviation, assetPrice decimal.NullDecimal) (Greeks, error) {
	var (
		g   Greeks
		err error
	)
	if g.Premium, err = m.Premium(now, deviation, assetPrice); err != nil {
		return Greeks{}, err
	}
	if g.Delta, err = m.Delta(now, deviation, assetPrice); err != nil {
		return Greeks{}, err
	}
	if g.Gamma, err = m.Gamma(now, deviation, assetPrice); err != nil {
		return Greeks{}, err
	}
	if g.Vega, err = m.Vega(now, deviation, assetPrice); err != nil {
		return Greeks{}, err
	}
	if g.Theta, err = m.Theta(now, deviation, assetPrice); err != nil {
		return Greeks{}, err
	}
	if g.Rho, err = m.Rho(now, deviation, assetPrice); err != nil {
		return Greeks{}, err
	}
	return g, nil
}
