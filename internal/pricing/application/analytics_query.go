package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	"github.com/wyfcoding/derivanalytics/pkg/utils"
)

const maxHistoryLimit = 1000

// AnalyticsQueryService 只读计算与查询，不写仓储、不发布事件
type AnalyticsQueryService struct {
	e *engine
}

// Greeks 计算理论价与全部希腊字母
func (q *AnalyticsQueryService) Greeks(ctx context.Context, query GreeksQuery) (*domain.PricingResult, error) {
	start := time.Now()
	result, _, err := q.e.evaluate(query)
	q.e.observe("greeks", start, result.Priced(), err)
	if err != nil {
		logger.Debug(ctx, "greeks calculation failed", "instrument_id", query.InstrumentID, "error", err)
		return nil, err
	}
	return result, nil
}

// ImpliedVolatility 由期权价格反解隐含波动率（百分比），不收敛或行情不足时无值
func (q *AnalyticsQueryService) ImpliedVolatility(ctx context.Context, query ImpliedVolatilityQuery) (decimal.NullDecimal, error) {
	start := time.Now()
	m, err := q.e.model(query.InstrumentID, query.Params)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	iv, err := m.ImpliedVolatility(q.e.now(query.At), query.Premium)
	q.e.observe("implied_volatility", start, iv.Valid, err)
	if err != nil {
		logger.Debug(ctx, "implied volatility failed", "instrument_id", query.InstrumentID, "premium", query.Premium.String(), "error", err)
	}
	return iv, err
}

// VolatilityDepth 把期权订单簿各档价格换算为隐含波动率，订单簿未知时返回 nil
func (q *AnalyticsQueryService) VolatilityDepth(ctx context.Context, instrumentID string, params ModelParams, at *time.Time) (*domain.MarketDepth, error) {
	start := time.Now()
	m, err := q.e.model(instrumentID, params)
	if err != nil {
		return nil, err
	}
	depth, err := m.VolatilityDepth(q.e.now(at))
	q.e.observe("volatility_depth", start, depth != nil, err)
	return depth, err
}

// Basket 篮子概要
func (q *AnalyticsQueryService) Basket(ctx context.Context, basketID string) (*BasketDTO, error) {
	b, err := q.e.basket(basketID)
	if err != nil {
		return nil, err
	}
	return q.e.basketDTO(basketID, b), nil
}

// BasketGreeks 篮子的持仓加权希腊字母
func (q *AnalyticsQueryService) BasketGreeks(ctx context.Context, basketID string, at *time.Time) (*BasketGreeksDTO, error) {
	return q.e.basketGreeks(basketID, at)
}

// Moneyness 以标的当前价格划分其期权，expiry 为 nil 时不限到期日
func (q *AnalyticsQueryService) Moneyness(ctx context.Context, underlyingID string, expiry *time.Time) (*MoneynessDTO, error) {
	underlying, err := q.e.instrument(underlyingID)
	if err != nil {
		return nil, err
	}
	price, ok := domain.CurrentPrice(underlying, q.e.Quotes)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, underlyingID)
	}
	c := domain.ClassifyStrikes(domain.Derivatives(underlying, q.e.Catalog, expiry), price)
	return &MoneynessDTO{
		UnderlyingID:  underlyingID,
		AssetPrice:    price,
		InTheMoney:    nonNil(c.InTheMoney),
		OutOfTheMoney: nonNil(c.OutOfTheMoney),
		AtTheMoney:    nonNil(c.AtTheMoney),
	}, nil
}

// SelectStrikes 按文本规则或已保存的命名规则挑选行权价。标的价格未知时返回空列表。
func (q *AnalyticsQueryService) SelectStrikes(ctx context.Context, query SelectStrikesQuery) ([]*domain.Instrument, error) {
	start := time.Now()
	underlying, err := q.e.instrument(query.UnderlyingID)
	if err != nil {
		return nil, err
	}

	var spec domain.StrikeRuleSpec
	switch {
	case query.Rule != "":
		if spec, err = domain.ParseStrikeRule(query.Rule); err != nil {
			return nil, err
		}
	case query.RuleName != "":
		rec, err := q.e.rule(ctx, query.UnderlyingID, query.RuleName)
		if err != nil {
			return nil, err
		}
		spec = rec.Spec
	default:
		return nil, fmt.Errorf("%w: rule or rule name is required", ErrInvalidArgument)
	}

	rule, err := spec.Bind(underlying, q.e.Catalog, q.e.Quotes, query.Expiry)
	if err != nil {
		return nil, err
	}
	price, ok := domain.CurrentPrice(underlying, q.e.Quotes)
	if !ok {
		q.e.observe("select_strikes", start, false, nil)
		return []*domain.Instrument{}, nil
	}
	out, err := rule.FilterStrikes(domain.Derivatives(underlying, q.e.Catalog, query.Expiry), price)
	q.e.observe("select_strikes", start, true, err)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// StrikeStep 最近到期组中相邻看涨行权价的间距
func (q *AnalyticsQueryService) StrikeStep(ctx context.Context, underlyingID string, expiry *time.Time) (decimal.Decimal, error) {
	underlying, err := q.e.instrument(underlyingID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.StrikeStep(underlying, q.e.Catalog, expiry)
}

// OptionValue 内在价值与时间价值
func (q *AnalyticsQueryService) OptionValue(ctx context.Context, instrumentID string) (*OptionValueDTO, error) {
	option, err := q.e.instrument(instrumentID)
	if err != nil {
		return nil, err
	}
	intrinsic, err := domain.IntrinsicValue(option, q.e.Catalog, q.e.Quotes)
	if err != nil {
		return nil, err
	}
	tv, err := domain.TimeValue(option, q.e.Catalog, q.e.Quotes)
	if err != nil {
		return nil, err
	}
	return &OptionValueDTO{InstrumentID: instrumentID, Intrinsic: intrinsic, TimeValue: tv}, nil
}

// SyntheticLegs 用标的与相反期权复制期权头寸
func (q *AnalyticsQueryService) SyntheticLegs(ctx context.Context, query SyntheticQuery) ([]domain.SyntheticLeg, error) {
	option, err := q.e.instrument(query.InstrumentID)
	if err != nil {
		return nil, err
	}
	s, err := domain.NewSynthetic(option, q.e.Catalog)
	if err != nil {
		return nil, err
	}
	return s.Position(query.Side)
}

// UnderlyingSyntheticLegs 用同行权价的看涨与看跌复制标的头寸
func (q *AnalyticsQueryService) UnderlyingSyntheticLegs(ctx context.Context, query UnderlyingSyntheticQuery) ([]domain.SyntheticLeg, error) {
	underlying, err := q.e.instrument(query.UnderlyingID)
	if err != nil {
		return nil, err
	}
	s, err := domain.NewSynthetic(underlying, q.e.Catalog)
	if err != nil {
		return nil, err
	}
	return s.UnderlyingPosition(query.Strike, query.Expiry, query.Side)
}

// Instrument 按 ID 查询证券
func (q *AnalyticsQueryService) Instrument(ctx context.Context, id string) (*domain.Instrument, error) {
	return q.e.instrument(id)
}

// Instruments 按条件枚举证券
func (q *AnalyticsQueryService) Instruments(ctx context.Context, criteria domain.Criteria) []*domain.Instrument {
	return nonNil(q.e.Catalog.Lookup(criteria))
}

// StrikeRules 标的下已保存的规则，按名称排序
func (q *AnalyticsQueryService) StrikeRules(ctx context.Context, underlyingID string) ([]*domain.StrikeRuleRecord, error) {
	if q.e.StrikeRules == nil {
		return q.e.memoryRules(underlyingID), nil
	}
	recs, err := q.e.StrikeRules.ListByUnderlying(ctx, underlyingID)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		q.e.cacheRule(rec)
	}
	return recs, nil
}

// LatestResult 先查缓存，未命中时查仓储并回填缓存；没有结果时返回 nil
func (q *AnalyticsQueryService) LatestResult(ctx context.Context, instrumentID string) (*domain.PricingResult, error) {
	if q.e.Cache != nil {
		cached, err := q.e.Cache.Get(ctx, instrumentID)
		switch {
		case err != nil:
			q.e.Metrics.IncCache("error")
			logger.Warn(ctx, "pricing cache read failed", "instrument_id", instrumentID, "error", err)
		case cached != nil:
			q.e.Metrics.IncCache("hit")
			return cached, nil
		default:
			q.e.Metrics.IncCache("miss")
		}
	}
	if q.e.Results == nil {
		return nil, nil
	}
	result, err := q.e.Results.GetLatest(ctx, instrumentID)
	if err != nil || result == nil {
		return nil, err
	}
	if q.e.Cache != nil {
		if err := q.e.Cache.Set(ctx, result); err != nil {
			logger.Warn(ctx, "failed to cache pricing result", "instrument_id", instrumentID, "error", err)
		}
	}
	return result, nil
}

// ResultHistory 按计算时间倒序的历史结果
func (q *AnalyticsQueryService) ResultHistory(ctx context.Context, instrumentID string, limit int) ([]*domain.PricingResult, error) {
	if q.e.Results == nil {
		return []*domain.PricingResult{}, nil
	}
	limit = utils.ClampLimit(limit, q.e.Defaults.HistoryLimit, maxHistoryLimit)
	return q.e.Results.GetHistory(ctx, instrumentID, limit)
}

func nonNil(items []*domain.Instrument) []*domain.Instrument {
	if items == nil {
		return []*domain.Instrument{}
	}
	return items
}
