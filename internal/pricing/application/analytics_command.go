package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
)

// AnalyticsCommandService 处理改变状态的操作：目录、行情、持仓、篮子、规则与定价落库。
// 定价结果与领域事件在同一事务内写入。
type AnalyticsCommandService struct {
	e *engine
}

// PriceOption 计算全部希腊字母，保存结果并发布 OptionPriced。
// 合约或参数错误时发布 PricingError 并返回错误；行情不足时结果中的值保持无效。
func (c *AnalyticsCommandService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	start := time.Now()
	result, option, err := c.e.evaluate(cmd)
	c.e.observe("price_option", start, result.Priced(), err)
	if err != nil {
		logger.Warn(ctx, "option pricing failed", "instrument_id", cmd.InstrumentID, "error", err)
		if cmd.InstrumentID != "" {
			c.publishPricingError(ctx, cmd.InstrumentID, err)
		}
		return nil, err
	}

	event := domain.OptionPricedEvent{
		InstrumentID:    result.InstrumentID,
		UnderlyingID:    result.UnderlyingID,
		OptionType:      option.OptionType,
		Strike:          option.Strike.Decimal,
		ExpiryDate:      *option.ExpiryDate,
		PricingModel:    result.PricingModel,
		UnderlyingPrice: result.UnderlyingPrice,
		Volatility:      result.Volatility,
		Greeks:          result.Greeks,
		OccurredOn:      result.CalculatedAt,
	}

	err = c.e.Tx(ctx, func(txCtx context.Context) error {
		if c.e.Results != nil {
			if err := c.e.Results.Save(txCtx, result); err != nil {
				return fmt.Errorf("save pricing result: %w", err)
			}
		}
		return c.e.Publisher.PublishOptionPriced(txCtx, event)
	})
	if err != nil {
		logger.Error(ctx, "failed to persist pricing result", "instrument_id", cmd.InstrumentID, "error", err)
		return nil, err
	}

	if c.e.Cache != nil {
		if err := c.e.Cache.Set(ctx, result); err != nil {
			logger.Warn(ctx, "failed to cache pricing result", "instrument_id", cmd.InstrumentID, "error", err)
		}
	}
	logger.Info(ctx, "option priced", "instrument_id", result.InstrumentID, "model", result.PricingModel, "premium", result.Greeks.Premium.Decimal.String(), "priced", result.Priced())
	return result, nil
}

func (c *AnalyticsCommandService) publishPricingError(ctx context.Context, instrumentID string, cause error) {
	err := c.e.Publisher.PublishPricingError(ctx, domain.PricingErrorEvent{
		InstrumentID: instrumentID,
		Error:        cause.Error(),
		OccurredOn:   c.e.Clock(),
	})
	if err != nil {
		logger.Warn(ctx, "failed to publish pricing error", "instrument_id", instrumentID, "error", err)
	}
}

// UpsertInstrument 校验后写入仓储与内存目录
func (c *AnalyticsCommandService) UpsertInstrument(ctx context.Context, cmd UpsertInstrumentCommand) (*domain.Instrument, error) {
	inst := cmd.Instrument
	if err := validateInstrument(&inst); err != nil {
		return nil, err
	}
	if c.e.Instruments != nil {
		if err := c.e.Instruments.Save(ctx, &inst); err != nil {
			return nil, fmt.Errorf("save instrument %s: %w", inst.ID, err)
		}
	}
	c.e.Catalog.Put(&inst)
	if c.e.Cache != nil {
		if err := c.e.Cache.Delete(ctx, inst.ID); err != nil {
			logger.Warn(ctx, "failed to evict pricing result", "instrument_id", inst.ID, "error", err)
		}
	}
	logger.Info(ctx, "instrument upserted", "instrument_id", inst.ID, "type", inst.Type)
	return &inst, nil
}

func validateInstrument(inst *domain.Instrument) error {
	inst.ID = strings.TrimSpace(inst.ID)
	if inst.ID == "" {
		return fmt.Errorf("%w: instrument id is required", ErrInvalidArgument)
	}
	if inst.Code == "" {
		inst.Code = inst.ID
	}
	inst.Type = domain.SecurityType(strings.ToUpper(string(inst.Type)))
	inst.OptionType = domain.OptionType(strings.ToUpper(string(inst.OptionType)))
	switch inst.Type {
	case domain.SecurityTypeStock, domain.SecurityTypeFuture, domain.SecurityTypeIndex:
		return nil
	case domain.SecurityTypeOption:
		if err := inst.CheckOption(); err != nil {
			return err
		}
		_, err := inst.CheckStrike()
		return err
	}
	return fmt.Errorf("%w: unknown security type %q", ErrInvalidArgument, string(inst.Type))
}

// RemoveInstrument 从目录与仓储中删除
func (c *AnalyticsCommandService) RemoveInstrument(ctx context.Context, id string) error {
	removed := c.e.Catalog.Remove(id)
	if c.e.Instruments != nil {
		if err := c.e.Instruments.Delete(ctx, id); err != nil {
			return err
		}
	} else if !removed {
		return fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	logger.Info(ctx, "instrument removed", "instrument_id", id)
	return nil
}

// LoadCatalog 启动时把仓储中的证券装入内存目录
func (c *AnalyticsCommandService) LoadCatalog(ctx context.Context) (int, error) {
	if c.e.Instruments == nil {
		return 0, nil
	}
	items, err := c.e.Instruments.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	for _, inst := range items {
		c.e.Catalog.Put(inst)
	}
	logger.Info(ctx, "catalog loaded", "instruments", len(items))
	return len(items), nil
}

// ApplyQuote 更新一档行情或订单簿。隐含波动率变化时发布 VolatilityUpdated。
func (c *AnalyticsCommandService) ApplyQuote(ctx context.Context, cmd ApplyQuoteCommand) error {
	if cmd.InstrumentID == "" {
		return fmt.Errorf("%w: instrument id is required", ErrInvalidArgument)
	}
	if cmd.Field == "" && cmd.Depth == nil {
		return fmt.Errorf("%w: quote for %s carries neither field nor depth", ErrInvalidArgument, cmd.InstrumentID)
	}

	if cmd.Depth != nil {
		depth := *cmd.Depth
		depth.InstrumentID = cmd.InstrumentID
		c.e.Quotes.SetDepth(&depth)
		c.e.Metrics.IncQuote("DEPTH")
	}
	if cmd.Field == "" {
		return nil
	}
	switch cmd.Field {
	case domain.FieldImpliedVolatility, domain.FieldLastTradePrice, domain.FieldBestBidPrice, domain.FieldBestAskPrice:
	default:
		return fmt.Errorf("%w: unknown level1 field %q", ErrInvalidArgument, string(cmd.Field))
	}

	c.e.Metrics.IncQuote(string(cmd.Field))
	if !cmd.Value.Valid {
		c.e.Quotes.Clear(cmd.InstrumentID, cmd.Field)
		return nil
	}
	old := c.e.Quotes.Set(cmd.InstrumentID, cmd.Field, cmd.Value.Decimal)
	if cmd.Field != domain.FieldImpliedVolatility || (old.Valid && old.Decimal.Equal(cmd.Value.Decimal)) {
		return nil
	}

	err := c.e.Publisher.PublishVolatilityUpdated(ctx, domain.VolatilityUpdatedEvent{
		InstrumentID:  cmd.InstrumentID,
		OldVolatility: old,
		NewVolatility: cmd.Value.Decimal,
		OccurredOn:    c.e.Clock(),
	})
	if err != nil {
		logger.Warn(ctx, "failed to publish volatility update", "instrument_id", cmd.InstrumentID, "error", err)
	}
	return nil
}

// ApplyPosition 写入持仓，数量为 0 时删除
func (c *AnalyticsCommandService) ApplyPosition(ctx context.Context, p domain.Position) error {
	if p.InstrumentID == "" {
		return fmt.Errorf("%w: instrument id is required", ErrInvalidArgument)
	}
	c.e.Positions.Set(p)
	logger.Debug(ctx, "position applied", "instrument_id", p.InstrumentID, "portfolio", p.PortfolioName, "value", p.CurrentValue.String())
	return nil
}

// CreateBasket 创建空篮子，未给出的参数取默认值
func (c *AnalyticsCommandService) CreateBasket(ctx context.Context, cmd CreateBasketCommand) (*BasketDTO, error) {
	b, err := domain.NewBasket(c.e.Catalog, c.e.Quotes, c.e.Positions)
	if err != nil {
		return nil, err
	}
	rd := c.e.Defaults.RoundDecimals
	if cmd.RoundDecimals != nil {
		rd = *cmd.RoundDecimals
	}
	if err := b.SetRoundDecimals(rd); err != nil {
		return nil, err
	}
	b.SetRiskFree(c.e.Defaults.RiskFree)
	if cmd.RiskFree.Valid {
		b.SetRiskFree(cmd.RiskFree.Decimal)
	}
	b.SetDefaultDividend(c.e.Defaults.Dividend)
	if cmd.Dividend.Valid {
		b.SetDividend(cmd.Dividend.Decimal)
	}
	if cmd.UnderlyingID != "" {
		asset, err := c.e.instrument(cmd.UnderlyingID)
		if err != nil {
			return nil, err
		}
		b.SetUnderlyingAsset(asset)
	}

	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = uuid.NewString()
	}
	c.e.mu.Lock()
	if _, exists := c.e.baskets[id]; exists {
		c.e.mu.Unlock()
		return nil, fmt.Errorf("%w: basket %s already exists", ErrInvalidArgument, id)
	}
	c.e.baskets[id] = b
	c.e.mu.Unlock()

	c.e.Metrics.SetBasketLegs(id, 0)
	logger.Info(ctx, "basket created", "basket_id", id)
	return c.e.basketDTO(id, b), nil
}

// DeleteBasket 删除篮子
func (c *AnalyticsCommandService) DeleteBasket(ctx context.Context, id string) error {
	c.e.mu.Lock()
	_, ok := c.e.baskets[id]
	delete(c.e.baskets, id)
	c.e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrBasketNotFound, id)
	}
	c.e.Metrics.DeleteBasket(id)
	logger.Info(ctx, "basket deleted", "basket_id", id)
	return nil
}

// AddBasketLeg 按篮子当前参数加入一条腿
func (c *AnalyticsCommandService) AddBasketLeg(ctx context.Context, cmd AddBasketLegCommand) (*BasketDTO, error) {
	b, err := c.e.basket(cmd.BasketID)
	if err != nil {
		return nil, err
	}
	option, err := c.e.instrument(cmd.InstrumentID)
	if err != nil {
		return nil, err
	}
	kind := c.e.Defaults.Model
	if cmd.Model != "" {
		if kind, err = domain.ParseModelKind(cmd.Model); err != nil {
			return nil, err
		}
	}
	if _, err := b.AddLeg(option, kind); err != nil {
		return nil, err
	}
	c.e.Metrics.SetBasketLegs(cmd.BasketID, b.Len())
	logger.Info(ctx, "basket leg added", "basket_id", cmd.BasketID, "instrument_id", option.ID, "model", kind)
	return c.e.basketDTO(cmd.BasketID, b), nil
}

// RemoveBasketLeg 移除一条腿
func (c *AnalyticsCommandService) RemoveBasketLeg(ctx context.Context, basketID, instrumentID string) (*BasketDTO, error) {
	b, err := c.e.basket(basketID)
	if err != nil {
		return nil, err
	}
	if !b.RemoveLeg(instrumentID) {
		return nil, fmt.Errorf("%w: %s in basket %s", domain.ErrLegNotFound, instrumentID, basketID)
	}
	c.e.Metrics.SetBasketLegs(basketID, b.Len())
	logger.Info(ctx, "basket leg removed", "basket_id", basketID, "instrument_id", instrumentID)
	return c.e.basketDTO(basketID, b), nil
}

// SetBasketRounding 同时作用于篮子与现有腿
func (c *AnalyticsCommandService) SetBasketRounding(ctx context.Context, basketID string, roundDecimals int) (*BasketDTO, error) {
	b, err := c.e.basket(basketID)
	if err != nil {
		return nil, err
	}
	if err := b.SetRoundDecimals(roundDecimals); err != nil {
		return nil, err
	}
	return c.e.basketDTO(basketID, b), nil
}

// RevalueBasket 计算篮子希腊字母并发布 BasketRevalued
func (c *AnalyticsCommandService) RevalueBasket(ctx context.Context, basketID string, at *time.Time) (*BasketGreeksDTO, error) {
	dto, err := c.e.basketGreeks(basketID, at)
	if err != nil {
		return nil, err
	}
	err = c.e.Publisher.PublishBasketRevalued(ctx, domain.BasketRevaluedEvent{
		BasketID:     dto.BasketID,
		UnderlyingID: dto.UnderlyingID,
		Legs:         dto.Legs,
		Greeks:       dto.Greeks,
		OccurredOn:   dto.CalculatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("publish basket revaluation: %w", err)
	}
	logger.Info(ctx, "basket revalued", "basket_id", basketID, "legs", dto.Legs, "delta", dto.Greeks.Delta.Decimal.String())
	return dto, nil
}

// SaveStrikeRule 解析并保存命名规则，发布 StrikeRuleSaved
func (c *AnalyticsCommandService) SaveStrikeRule(ctx context.Context, cmd SaveStrikeRuleCommand) (*domain.StrikeRuleRecord, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: rule name is required", ErrInvalidArgument)
	}
	if _, err := c.e.instrument(cmd.UnderlyingID); err != nil {
		return nil, err
	}
	spec, err := domain.ParseStrikeRule(cmd.Rule)
	if err != nil {
		return nil, err
	}
	rec := &domain.StrikeRuleRecord{
		UnderlyingID: cmd.UnderlyingID,
		Name:         name,
		Spec:         spec,
		UpdatedAt:    c.e.Clock(),
	}

	err = c.e.Tx(ctx, func(txCtx context.Context) error {
		if c.e.StrikeRules != nil {
			if err := c.e.StrikeRules.Save(txCtx, rec); err != nil {
				return fmt.Errorf("save strike rule: %w", err)
			}
		}
		return c.e.Publisher.PublishStrikeRuleSaved(txCtx, domain.StrikeRuleSavedEvent{
			UnderlyingID: rec.UnderlyingID,
			Name:         rec.Name,
			Rule:         spec.String(),
			OccurredOn:   rec.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	c.e.cacheRule(rec)
	logger.Info(ctx, "strike rule saved", "underlying_id", rec.UnderlyingID, "name", rec.Name, "rule", spec.String())
	return rec, nil
}

// PurgeResults 删除早于 before 的定价结果
func (c *AnalyticsCommandService) PurgeResults(ctx context.Context, before time.Time) (int64, error) {
	if c.e.Results == nil {
		return 0, nil
	}
	n, err := c.e.Results.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("purge pricing results: %w", err)
	}
	logger.Info(ctx, "pricing results purged", "before", before, "rows", n)
	return n, nil
}

// evaluate 构建模型并计算，结果尚未保存；同时返回计算所用的期权
func (e *engine) evaluate(cmd PriceOptionCommand) (*domain.PricingResult, *domain.Instrument, error) {
	m, err := e.model(cmd.InstrumentID, cmd.Params)
	if err != nil {
		return nil, nil, err
	}
	option := m.Option()
	now := e.now(cmd.At)
	price, err := m.AssetPrice(cmd.AssetPrice)
	if err != nil {
		return nil, nil, err
	}

	// 没有波动率覆盖且隐含波动率未知时全部无值
	var greeks domain.Greeks
	volatility := m.DefaultDeviation()
	if cmd.Deviation.Valid {
		volatility = cmd.Deviation.Decimal
	}
	if _, known := e.Quotes.SecurityValue(option, domain.FieldImpliedVolatility); known || cmd.Deviation.Valid {
		if greeks, err = domain.CalculateGreeks(m, now, cmd.Deviation, cmd.AssetPrice); err != nil {
			return nil, nil, err
		}
	}
	return &domain.PricingResult{
		InstrumentID:    option.ID,
		UnderlyingID:    option.UnderlyingID,
		PricingModel:    m.Kind(),
		UnderlyingPrice: price,
		Volatility:      volatility,
		RiskFree:        m.RiskFree(),
		Dividend:        m.Dividend(),
		Greeks:          greeks,
		CalculatedAt:    now,
	}, option, nil
}

// basketGreeks 篮子的持仓加权希腊字母
func (e *engine) basketGreeks(basketID string, at *time.Time) (*BasketGreeksDTO, error) {
	start := time.Now()
	b, err := e.basket(basketID)
	if err != nil {
		return nil, err
	}
	asset, err := b.UnderlyingAsset()
	if err != nil {
		e.observe("basket_greeks", start, false, err)
		return nil, err
	}
	now := e.now(at)
	greeks, err := domain.CalculateGreeks(b, now, decimal.NullDecimal{}, decimal.NullDecimal{})
	e.observe("basket_greeks", start, allValid(greeks), err)
	if err != nil {
		return nil, err
	}
	return &BasketGreeksDTO{
		BasketID:     basketID,
		UnderlyingID: asset.ID,
		Legs:         b.Len(),
		Greeks:       greeks,
		CalculatedAt: now,
	}, nil
}
