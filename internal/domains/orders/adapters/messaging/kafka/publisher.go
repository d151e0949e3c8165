package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

const (
	DefaultStockCommitTopic = "order.executed"
	DefaultStockReturnTopic = "stock.return"

	headerEventID   = "event-id"
	headerEventName = "event-name"
)

var _ ports.EventPublisher = (*Publisher)(nil)

// Sender writes a message to a topic. Implemented by the platform kafka producers.
type Sender interface {
	Send(ctx context.Context, topic string, msg kafka.Message) error
}

// Topics names the destination of each stock event.
type Topics struct {
	StockCommit string
	StockReturn string
}

func DefaultTopics() Topics {
	return Topics{StockCommit: DefaultStockCommitTopic, StockReturn: DefaultStockReturnTopic}
}

// Publisher sends stock events as JSON keyed by order id.
type Publisher struct {
	sender Sender
	topics Topics
}

func NewPublisher(sender Sender, topics Topics) *Publisher {
	defaults := DefaultTopics()
	if topics.StockCommit == "" {
		topics.StockCommit = defaults.StockCommit
	}
	if topics.StockReturn == "" {
		topics.StockReturn = defaults.StockReturn
	}
	return &Publisher{sender: sender, topics: topics}
}

func (p *Publisher) PublishStockCommit(ctx context.Context, event domain.StockCommit) error {
	return p.publish(ctx, p.topics.StockCommit, event.OrderID, event.EventID, event)
}

func (p *Publisher) PublishStockReturn(ctx context.Context, event domain.StockReturn) error {
	return p.publish(ctx, p.topics.StockReturn, event.OrderID, event.EventID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key, eventID string, event domain.Event) error {
	msg, err := NewMessage(key, eventID, event)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrPublishFailed, err)
	}
	if err := p.sender.Send(ctx, topic, msg); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrPublishFailed, err)
	}
	return nil
}

// NewMessage encodes event as the JSON body of a keyed message.
func NewMessage(key, eventID string, event domain.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt().UTC(),
		Headers: []kafka.Header{
			{Key: headerEventID, Value: []byte(eventID)},
			{Key: headerEventName, Value: []byte(event.EventName())},
		},
	}, nil
}
