package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// StrikeRule 从一组候选合约中按规则挑选行权价
type StrikeRule interface {
	Kind() StrikeRuleKind
	FilterStrikes(strikes []*Instrument, assetPrice decimal.Decimal) ([]*Instrument, error)
	// String 参数的文本形式 "<min>:<max>"
	String() string
}

// StrikeRuleKind 规则类型
type StrikeRuleKind string

const (
	StrikeRuleOffset     StrikeRuleKind = "offset"
	StrikeRuleVolatility StrikeRuleKind = "volatility"
)

// OffsetRange 以行权价步长为单位的偏移区间
type OffsetRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r OffsetRange) String() string {
	return strconv.Itoa(r.Min) + ":" + strconv.Itoa(r.Max)
}

// ParseOffsetRange 解析 "<min>:<max>"
func ParseOffsetRange(s string) (OffsetRange, error) {
	minText, maxText, err := splitRange(s)
	if err != nil {
		return OffsetRange{}, err
	}
	lo, err := strconv.Atoi(minText)
	if err != nil {
		return OffsetRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}
	hi, err := strconv.Atoi(maxText)
	if err != nil {
		return OffsetRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}
	r := OffsetRange{Min: lo, Max: hi}
	return r, r.Validate()
}

func (r OffsetRange) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// VolatilityRange 隐含波动率闭区间（百分比）
type VolatilityRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

func (r VolatilityRange) String() string {
	return r.Min.String() + ":" + r.Max.String()
}

// ParseVolatilityRange 解析 "<min>:<max>"
func ParseVolatilityRange(s string) (VolatilityRange, error) {
	minText, maxText, err := splitRange(s)
	if err != nil {
		return VolatilityRange{}, err
	}
	lo, err := decimal.NewFromString(minText)
	if err != nil {
		return VolatilityRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}
	hi, err := decimal.NewFromString(maxText)
	if err != nil {
		return VolatilityRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}
	r := VolatilityRange{Min: lo, Max: hi}
	return r, r.Validate()
}

func (r VolatilityRange) Validate() error {
	if r.Min.GreaterThan(r.Max) {
		return fmt.Errorf("%w: min %s > max %s", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

func splitRange(s string) (string, string, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return strings.TrimSpace(lo), strings.TrimSpace(hi), nil
}

// StrikeRuleSpec 持久化的规则参数，不含解析出的行权价集合
type StrikeRuleSpec struct {
	Kind       StrikeRuleKind  `json:"kind"`
	Offset     OffsetRange     `json:"offset"`
	Volatility VolatilityRange `json:"volatility"`
}

// String 带类型标签的文本形式，如 "offset|0:1"
func (s StrikeRuleSpec) String() string {
	switch s.Kind {
	case StrikeRuleOffset:
		return string(s.Kind) + "|" + s.Offset.String()
	case StrikeRuleVolatility:
		return string(s.Kind) + "|" + s.Volatility.String()
	}
	return string(s.Kind)
}

// ParseStrikeRule 解析 "offset|0:1" 或 "volatility|15:35"
func ParseStrikeRule(text string) (StrikeRuleSpec, error) {
	kind, params, ok := strings.Cut(strings.TrimSpace(text), "|")
	if !ok {
		return StrikeRuleSpec{}, fmt.Errorf("%w: %q", ErrUnknownStrikeRule, text)
	}
	spec := StrikeRuleSpec{Kind: StrikeRuleKind(strings.ToLower(strings.TrimSpace(kind)))}
	var err error
	switch spec.Kind {
	case StrikeRuleOffset:
		spec.Offset, err = ParseOffsetRange(params)
	case StrikeRuleVolatility:
		spec.Volatility, err = ParseVolatilityRange(params)
	default:
		return StrikeRuleSpec{}, fmt.Errorf("%w: %q", ErrUnknownStrikeRule, kind)
	}
	if err != nil {
		return StrikeRuleSpec{}, err
	}
	return spec, nil
}

// Bind 结合实时提供者得到可执行的规则
func (s StrikeRuleSpec) Bind(underlying *Instrument, securities SecurityProvider, marketData MarketDataProvider, expiry *time.Time) (StrikeRule, error) {
	switch s.Kind {
	case StrikeRuleOffset:
		return NewOffsetStrikeRule(s.Offset, underlying, securities, expiry)
	case StrikeRuleVolatility:
		return NewVolatilityStrikeRule(s.Volatility, marketData)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrikeRule, string(s.Kind))
}

// OffsetStrikeRule 以中心行权价为基准、按步长偏移的窗口。
// 步长在首次使用时计算并一直缓存。
type OffsetStrikeRule struct {
	Range OffsetRange

	underlying *Instrument
	securities SecurityProvider
	expiry     *time.Time

	mu   sync.Mutex
	step decimal.NullDecimal
}

// NewOffsetStrikeRule 创建偏移规则
func NewOffsetStrikeRule(r OffsetRange, underlying *Instrument, securities SecurityProvider, expiry *time.Time) (*OffsetStrikeRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if underlying == nil {
		return nil, ErrNilInstrument
	}
	return &OffsetStrikeRule{Range: r, underlying: underlying, securities: securities, expiry: expiry}, nil
}

// NewOffsetStrikeRuleWithStep 使用给定步长
func NewOffsetStrikeRuleWithStep(r OffsetRange, step decimal.Decimal) (*OffsetStrikeRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &OffsetStrikeRule{Range: r, step: decimal.NewNullDecimal(step)}, nil
}

func (r *OffsetStrikeRule) Kind() StrikeRuleKind { return StrikeRuleOffset }

func (r *OffsetStrikeRule) String() string { return r.Range.String() }

// StrikeStep 首次调用时计算，之后返回缓存值
func (r *OffsetStrikeRule) StrikeStep() (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.step.Valid {
		return r.step.Decimal, nil
	}
	step, err := StrikeStep(r.underlying, r.securities, r.expiry)
	if err != nil {
		return decimal.Zero, err
	}
	r.step = decimal.NewNullDecimal(step)
	return step, nil
}

// FilterStrikes 看涨保留 [C+min*step, C+max*step]，看跌保留 [C-max*step, C-min*step]，按行权价升序
func (r *OffsetStrikeRule) FilterStrikes(strikes []*Instrument, assetPrice decimal.Decimal) ([]*Instrument, error) {
	central, ok := CentralStrike(strikes, assetPrice)
	if !ok {
		return []*Instrument{}, nil
	}
	step, err := r.StrikeStep()
	if err != nil {
		return nil, err
	}

	c := central.Strike.Decimal
	lo := step.Mul(decimal.NewFromInt(int64(r.Range.Min)))
	hi := step.Mul(decimal.NewFromInt(int64(r.Range.Max)))

	out := filter(strikes, func(i *Instrument) bool {
		if !i.Strike.Valid {
			return false
		}
		k := i.Strike.Decimal
		switch i.OptionType {
		case OptionTypeCall:
			return k.GreaterThanOrEqual(c.Add(lo)) && k.LessThanOrEqual(c.Add(hi))
		case OptionTypePut:
			return k.GreaterThanOrEqual(c.Sub(hi)) && k.LessThanOrEqual(c.Sub(lo))
		}
		return false
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strike.Decimal.LessThan(out[j].Strike.Decimal) })
	return out, nil
}

// VolatilityStrikeRule 保留隐含波动率落在闭区间内的合约，无波动率的合约被丢弃
type VolatilityStrikeRule struct {
	Range VolatilityRange

	marketData MarketDataProvider
}

// NewVolatilityStrikeRule 创建波动率规则
func NewVolatilityStrikeRule(r VolatilityRange, marketData MarketDataProvider) (*VolatilityStrikeRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if marketData == nil {
		return nil, fmt.Errorf("%w: market data provider", ErrNilProvider)
	}
	return &VolatilityStrikeRule{Range: r, marketData: marketData}, nil
}

func (r *VolatilityStrikeRule) Kind() StrikeRuleKind { return StrikeRuleVolatility }

func (r *VolatilityStrikeRule) String() string { return r.Range.String() }

func (r *VolatilityStrikeRule) FilterStrikes(strikes []*Instrument, _ decimal.Decimal) ([]*Instrument, error) {
	return filter(strikes, func(i *Instrument) bool {
		iv, ok := r.marketData.SecurityValue(i, FieldImpliedVolatility)
		return ok && iv.GreaterThanOrEqual(r.Range.Min) && iv.LessThanOrEqual(r.Range.Max)
	}), nil
}
