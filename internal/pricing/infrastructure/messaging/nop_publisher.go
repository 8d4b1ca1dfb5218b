package messaging

import (
	"context"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
)

// LogEventPublisher 未配置 Kafka 时使用，只记录 debug 日志
type LogEventPublisher struct{}

var _ domain.EventPublisher = LogEventPublisher{}

func (LogEventPublisher) PublishOptionPriced(ctx context.Context, e domain.OptionPricedEvent) error {
	logger.Debug(ctx, "event", "type", domain.OptionPricedEventType, "instrument_id", e.InstrumentID)
	return nil
}

func (LogEventPublisher) PublishBasketRevalued(ctx context.Context, e domain.BasketRevaluedEvent) error {
	logger.Debug(ctx, "event", "type", domain.BasketRevaluedEventType, "basket_id", e.BasketID)
	return nil
}

func (LogEventPublisher) PublishVolatilityUpdated(ctx context.Context, e domain.VolatilityUpdatedEvent) error {
	logger.Debug(ctx, "event", "type", domain.VolatilityUpdatedEventType, "instrument_id", e.InstrumentID)
	return nil
}

func (LogEventPublisher) PublishStrikeRuleSaved(ctx context.Context, e domain.StrikeRuleSavedEvent) error {
	logger.Debug(ctx, "event", "type", domain.StrikeRuleSavedEventType, "underlying_id", e.UnderlyingID)
	return nil
}

func (LogEventPublisher) PublishPricingError(ctx context.Context, e domain.PricingErrorEvent) error {
	logger.Debug(ctx, "event", "type", domain.PricingErrorEventType, "instrument_id", e.InstrumentID, "error", e.Error)
	return nil
}
