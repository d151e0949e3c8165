package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

// Service exposes order ledger use cases to adapters.
type Service interface {
	CreateOrder(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, input types.ListOrdersInput) ([]*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, input types.UpdateStatusInput) (*domain.Order, error)
	PendingCommittedAmount(ctx context.Context, clientID int64) (decimal.Decimal, error)
}
