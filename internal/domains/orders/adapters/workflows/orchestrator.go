package workflows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/order-ledger/internal/domains/orders/application"
	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/order-ledger/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/order-ledger/internal/platform/temporal/workflows/orders"
)

var (
	_ ports.WorkflowOrchestrator = (*TemporalOrderWorkflows)(nil)
	_ ports.WorkflowOrchestrator = (*InlineOrderWorkflows)(nil)
)

// TemporalOrderWorkflows starts order intake on a Temporal cluster.
type TemporalOrderWorkflows struct {
	client    client.Client
	taskQueue string
}

func NewTemporalOrderWorkflows(c client.Client) *TemporalOrderWorkflows {
	return &TemporalOrderWorkflows{client: c, taskQueue: orderworkflows.IntakeTaskQueue}
}

// CreateOrder runs the intake workflow and waits for its result.
// A retry with the same Idempotency-Key and payload attaches to the run already started for it.
// A different payload under that key starts its own run, which the service rejects as a conflict.
func (o *TemporalOrderWorkflows) CreateOrder(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal order workflows not configured")
	}
	traceComponent := workflowTraceComponent(ctx)
	workflowID := buildIntakeWorkflowID(input, traceComponent)
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: o.taskQueue,
	}
	run, err := o.client.ExecuteWorkflow(
		ctx,
		options,
		orderworkflows.IntakeWorkflowName,
		orderworkflows.IntakeWorkflowInput{Command: input, TraceID: traceComponent},
	)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) && strings.TrimSpace(input.IdempotencyKey) != "" {
			return awaitOrder(ctx, o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId))
		}
		return nil, err
	}
	return awaitOrder(ctx, run)
}

func awaitOrder(ctx context.Context, run client.WorkflowRun) (*domain.Order, error) {
	var order domain.Order
	if err := run.Get(ctx, &order); err != nil {
		return nil, orderactivities.FromWorkflowError(err)
	}
	return &order, nil
}

// InlineOrderWorkflows calls the service directly. Used when Temporal is disabled or unreachable.
type InlineOrderWorkflows struct {
	service ports.Service
}

func NewInlineOrderWorkflows(service ports.Service) *InlineOrderWorkflows {
	return &InlineOrderWorkflows{service: service}
}

func (o *InlineOrderWorkflows) CreateOrder(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline order workflows not configured")
	}
	return o.service.CreateOrder(ctx, input)
}

func buildIntakeWorkflowID(input types.CreateOrderInput, traceComponent string) string {
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		fingerprint, err := application.FingerprintCreateOrder(input)
		if err != nil {
			return fmt.Sprintf("order-intake-idem-%s", hashIdempotencyKey(key))
		}
		return fmt.Sprintf("order-intake-idem-%s-%s", hashIdempotencyKey(key), fingerprint[:16])
	}
	return fmt.Sprintf("order-intake-%d-%s", input.ClientID, traceComponent)
}

func hashIdempotencyKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func workflowTraceComponent(ctx context.Context) string {
	if traceID := workflowTraceID(ctx); traceID != "" {
		return traceID
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
