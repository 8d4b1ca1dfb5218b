// Package messaging 领域事件的 Kafka 发布（直发与 outbox 两种方式）以及行情消息消费
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

// Envelope 事件在 topic 上的统一外层结构
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Key        string          `json:"key"`
	OccurredOn time.Time       `json:"occurred_on"`
	Payload    json.RawMessage `json:"payload"`
}

func newEnvelope(eventType, key string, at time.Time, event any) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}
	if at.IsZero() {
		at = time.Now()
	}
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Key:        key,
		OccurredOn: at,
		Payload:    payload,
	}, nil
}

func occurredOn(event any) time.Time {
	switch e := event.(type) {
	case domain.OptionPricedEvent:
		return e.OccurredOn
	case domain.BasketRevaluedEvent:
		return e.OccurredOn
	case domain.VolatilityUpdatedEvent:
		return e.OccurredOn
	case domain.StrikeRuleSavedEvent:
		return e.OccurredOn
	case domain.PricingErrorEvent:
		return e.OccurredOn
	}
	return time.Time{}
}
