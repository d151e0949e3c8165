package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

// PlaceOrderActivityName runs the full intake saga for one request.
const PlaceOrderActivityName = "orders.activities.PlaceOrder"

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	service ports.Service
}

func NewActivities(service ports.Service) *Activities {
	return &Activities{service: service}
}

// PlaceOrder runs intake. Caller-visible failures are returned as non-retryable application errors.
func (a *Activities) PlaceOrder(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("place order activity not initialized", "clientId", input.ClientID)
		return nil, errors.New("place order activity not initialized")
	}
	logger.Info("PlaceOrder activity started", "clientId", input.ClientID, "lines", len(input.Lines))
	order, err := a.service.CreateOrder(ctx, input)
	if err != nil {
		logger.Error("PlaceOrder activity failed", "clientId", input.ClientID, "error", err)
		return nil, ToApplicationError(err)
	}
	logger.Info("PlaceOrder activity completed", "orderId", order.ID, "status", string(order.Status))
	return order, nil
}
