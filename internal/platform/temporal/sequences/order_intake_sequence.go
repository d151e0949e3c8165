package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	orderactivities "github.com/Apurer/order-ledger/internal/platform/temporal/activities/orders"
)

// RunOrderIntakeSequence places the order in a single attempt.
// Intake persists on every run, so a retry would leave a second audit row.
func RunOrderIntakeSequence(ctx workflow.Context, input types.CreateOrderInput) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("order intake sequence started", "clientId", input.ClientID)
	options := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}

	var order domain.Order
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, options), orderactivities.PlaceOrderActivityName, input).Get(ctx, &order)
	if err != nil {
		logger.Error("order intake sequence failed", "clientId", input.ClientID, "error", err)
		return nil, err
	}
	logger.Info("order intake sequence completed", "orderId", order.ID, "status", string(order.Status))
	return &order, nil
}
