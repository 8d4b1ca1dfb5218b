package domain

import "context"

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// PublishOptionPriced 发布期权定价完成事件
	PublishOptionPriced(ctx context.Context, event OptionPricedEvent) error

	// PublishBasketRevalued 发布篮子重估事件
	PublishBasketRevalued(ctx context.Context, event BasketRevaluedEvent) error

	// PublishVolatilityUpdated 发布波动率更新事件
	PublishVolatilityUpdated(ctx context.Context, event VolatilityUpdatedEvent) error

	// PublishStrikeRuleSaved 发布行权价规则保存事件
	PublishStrikeRuleSaved(ctx context.Context, event StrikeRuleSavedEvent) error

	// PublishPricingError 发布定价错误事件
	PublishPricingError(ctx context.Context, event PricingErrorEvent) error
}
