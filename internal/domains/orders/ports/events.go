package ports

import (
	"context"
	"errors"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

var ErrPublishFailed = errors.New("event publish failed")

// EventPublisher hands stock events to the broker. A nil error only means the broker accepted the write.
type EventPublisher interface {
	PublishStockCommit(ctx context.Context, event domain.StockCommit) error
	PublishStockReturn(ctx context.Context, event domain.StockReturn) error
}

// ReconciliationLog keeps compensation events that could not be published so they can be replayed.
type ReconciliationLog interface {
	RecordStockReturn(ctx context.Context, event domain.StockReturn) error
}
