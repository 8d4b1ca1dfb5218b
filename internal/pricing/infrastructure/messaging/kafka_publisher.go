package messaging

import (
	"context"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/metrics"
	"github.com/wyfcoding/derivanalytics/pkg/mq"
)

// KafkaEventPublisher 直接写入 Kafka 的事件发布者，同一证券的事件使用相同 key
type KafkaEventPublisher struct {
	sender  mq.Sender
	topic   string
	metrics *metrics.Metrics
}

var _ domain.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(sender mq.Sender, topic string, m *metrics.Metrics) *KafkaEventPublisher {
	return &KafkaEventPublisher{sender: sender, topic: topic, metrics: m}
}

func (p *KafkaEventPublisher) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	return p.publish(ctx, domain.OptionPricedEventType, event.InstrumentID, event)
}

func (p *KafkaEventPublisher) PublishBasketRevalued(ctx context.Context, event domain.BasketRevaluedEvent) error {
	return p.publish(ctx, domain.BasketRevaluedEventType, event.BasketID, event)
}

func (p *KafkaEventPublisher) PublishVolatilityUpdated(ctx context.Context, event domain.VolatilityUpdatedEvent) error {
	return p.publish(ctx, domain.VolatilityUpdatedEventType, event.InstrumentID, event)
}

func (p *KafkaEventPublisher) PublishStrikeRuleSaved(ctx context.Context, event domain.StrikeRuleSavedEvent) error {
	return p.publish(ctx, domain.StrikeRuleSavedEventType, event.UnderlyingID, event)
}

func (p *KafkaEventPublisher) PublishPricingError(ctx context.Context, event domain.PricingErrorEvent) error {
	return p.publish(ctx, domain.PricingErrorEventType, event.InstrumentID, event)
}

func (p *KafkaEventPublisher) publish(ctx context.Context, eventType, key string, event any) error {
	env, err := newEnvelope(eventType, key, occurredOn(event), event)
	if err == nil {
		err = p.sender.SendMessage(ctx, p.topic, key, env)
	}
	p.metrics.IncEvent(eventType, err)
	return err
}
