package kafka

import (
	"context"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var _ ports.ReconciliationLog = (*OutboxLog)(nil)

// Inserter stores an event for later relay. Implemented by the platform outbox store.
type Inserter interface {
	Insert(ctx context.Context, eventID, topic, key string, payload any) error
}

// OutboxLog parks unpublished StockReturn events in the outbox so the relay can resend them.
type OutboxLog struct {
	outbox Inserter
	topic  string
}

func NewOutboxLog(outbox Inserter, topics Topics) *OutboxLog {
	topic := topics.StockReturn
	if topic == "" {
		topic = DefaultStockReturnTopic
	}
	return &OutboxLog{outbox: outbox, topic: topic}
}

func (l *OutboxLog) RecordStockReturn(ctx context.Context, event domain.StockReturn) error {
	return l.outbox.Insert(ctx, event.EventID, l.topic, event.OrderID, event)
}
