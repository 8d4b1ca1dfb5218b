package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/mq"
)

type sentMessage struct {
	topic string
	key   string
	value any
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, topic, key string, value any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func TestKafkaEventPublisherWrapsEnvelope(t *testing.T) {
	sender := &fakeSender{}
	p := NewKafkaEventPublisher(sender, "derivanalytics.events", nil)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	err := p.PublishOptionPriced(context.Background(), domain.OptionPricedEvent{
		InstrumentID: "SPOT-C-100",
		Greeks:       domain.Greeks{Delta: decimal.NewNullDecimal(decimal.RequireFromString("0.55"))},
		OccurredOn:   at,
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "derivanalytics.events", sender.sent[0].topic)
	assert.Equal(t, "SPOT-C-100", sender.sent[0].key)

	env, ok := sender.sent[0].value.(Envelope)
	require.True(t, ok)
	assert.Equal(t, domain.OptionPricedEventType, env.EventType)
	assert.Equal(t, at, env.OccurredOn)
	assert.NotEmpty(t, env.EventID)

	var payload domain.OptionPricedEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.True(t, payload.Greeks.Delta.Valid)
	assert.False(t, payload.Greeks.Gamma.Valid)
}

func TestKafkaEventPublisherKeys(t *testing.T) {
	sender := &fakeSender{}
	p := NewKafkaEventPublisher(sender, "events", nil)
	ctx := context.Background()

	require.NoError(t, p.PublishBasketRevalued(ctx, domain.BasketRevaluedEvent{BasketID: "b-1"}))
	require.NoError(t, p.PublishStrikeRuleSaved(ctx, domain.StrikeRuleSavedEvent{UnderlyingID: "SPOT"}))
	require.NoError(t, p.PublishVolatilityUpdated(ctx, domain.VolatilityUpdatedEvent{InstrumentID: "SPOT-C-100"}))

	keys := []string{sender.sent[0].key, sender.sent[1].key, sender.sent[2].key}
	assert.Equal(t, []string{"b-1", "SPOT", "SPOT-C-100"}, keys)
	assert.False(t, sender.sent[0].value.(Envelope).OccurredOn.IsZero())
}

func TestKafkaEventPublisherReturnsSendError(t *testing.T) {
	p := NewKafkaEventPublisher(&fakeSender{err: errors.New("broker down")}, "events", nil)
	assert.Error(t, p.PublishPricingError(context.Background(), domain.PricingErrorEvent{InstrumentID: "X"}))
}

func TestOutboxMessageRoundTrip(t *testing.T) {
	env, err := newEnvelope(domain.StrikeRuleSavedEventType, "SPOT", time.Time{}, domain.StrikeRuleSavedEvent{Rule: "offset|0:1"})
	require.NoError(t, err)

	msg := toOutboxMessage(env)
	assert.Equal(t, OutboxPending, msg.Status)
	back := msg.envelope()
	assert.Equal(t, env.EventID, back.EventID)
	assert.JSONEq(t, string(env.Payload), string(back.Payload))
}

func TestQuoteConsumer(t *testing.T) {
	var got []QuoteMessage
	c := NewQuoteConsumer(func(_ context.Context, q QuoteMessage) error {
		got = append(got, q)
		return nil
	})
	ctx := context.Background()

	t.Run("level1 field with key fallback", func(t *testing.T) {
		err := c.Handle(ctx, &mq.Message{Key: "SPOT", Value: []byte(`{"field":"LAST_TRADE_PRICE","value":"101.5"}`)})
		require.NoError(t, err)
		q := got[len(got)-1]
		assert.Equal(t, "SPOT", q.InstrumentID)
		assert.True(t, q.Value.Decimal.Equal(decimal.RequireFromString("101.5")))
	})

	t.Run("null value clears", func(t *testing.T) {
		err := c.Handle(ctx, &mq.Message{Value: []byte(`{"instrument_id":"C1","field":"IMPLIED_VOLATILITY","value":null}`)})
		require.NoError(t, err)
		assert.False(t, got[len(got)-1].Value.Valid)
	})

	t.Run("depth snapshot", func(t *testing.T) {
		err := c.Handle(ctx, &mq.Message{Value: []byte(`{"instrument_id":"C1","depth":{"bids":[{"price":"5","volume":"10"}],"asks":[]}}`)})
		require.NoError(t, err)
		q := got[len(got)-1]
		require.NotNil(t, q.Depth)
		assert.Equal(t, "C1", q.Depth.InstrumentID)
	})

	t.Run("rejects", func(t *testing.T) {
		before := len(got)
		assert.Error(t, c.Handle(ctx, &mq.Message{Value: []byte(`not json`)}))
		assert.Error(t, c.Handle(ctx, &mq.Message{Value: []byte(`{"instrument_id":"C1"}`)}))
		assert.Error(t, c.Handle(ctx, &mq.Message{Value: []byte(`{"instrument_id":"C1","field":"VWAP","value":"1"}`)}))
		assert.Len(t, got, before)
	})
}
