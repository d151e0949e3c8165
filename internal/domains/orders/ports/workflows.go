package ports

import (
	"context"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

// WorkflowOrchestrator runs order intake, durably when a workflow engine is available.
type WorkflowOrchestrator interface {
	CreateOrder(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error)
}
