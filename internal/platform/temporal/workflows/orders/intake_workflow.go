package orders

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/platform/temporal/sequences"
)

const (
	// IntakeWorkflowName is the public identifier for registering the workflow.
	IntakeWorkflowName = "orders.workflows.Intake"
	// IntakeTaskQueue is the queue consumed by the worker processing order intake.
	IntakeTaskQueue = "ORDER_INTAKE"
)

// IntakeWorkflowInput carries the creation command and the caller's trace id.
type IntakeWorkflowInput struct {
	Command types.CreateOrderInput
	TraceID string
}

// IntakeWorkflow runs the order saga durably.
func IntakeWorkflow(ctx workflow.Context, input IntakeWorkflowInput) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	clientID := input.Command.ClientID
	logger.Info("IntakeWorkflow started", withTraceID(input.TraceID, "clientId", clientID)...)
	order, err := sequences.RunOrderIntakeSequence(ctx, input.Command)
	if err != nil {
		logger.Error("IntakeWorkflow failed", withTraceID(input.TraceID, "clientId", clientID, "error", err)...)
		return nil, err
	}
	logger.Info("IntakeWorkflow completed", withTraceID(input.TraceID, "orderId", order.ID, "status", string(order.Status))...)
	return order, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
