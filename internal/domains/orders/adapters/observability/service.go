package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/order-ledger/internal/domains/orders/adapters/observability"

// Service decorates the orders port with tracing, logging and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// CreateOrder runs intake. Every outcome status is counted, including rejections.
func (s *Service) CreateOrder(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.CreateOrder",
		attribute.Int64("client.id", input.ClientID),
		attribute.Int("order.lines.requested", len(input.Lines)),
		attribute.Bool("order.idempotent", input.IdempotencyKey != ""),
	)
	defer span.End()

	s.logInfo(ctx, "creating order", slog.Int64("client.id", input.ClientID), slog.Int("lines", len(input.Lines)))
	order, err := s.inner.CreateOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create order", slog.Int64("client.id", input.ClientID))
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
		attribute.String("order.total", order.TotalAmount.String()),
	)
	s.metrics.recordCreated(ctx, order.Status)
	s.logInfo(ctx, "order created",
		slog.String("order.id", order.ID),
		slog.String("order.number", order.OrderNumber),
		slog.String("order.status", string(order.Status)),
		slog.String("order.total", order.TotalAmount.String()),
	)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.GetOrder", attribute.String("order.id", id))
	defer span.End()

	order, err := s.inner.GetOrder(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", id))
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, input types.ListOrdersInput) ([]*domain.Order, error) {
	var attrs []attribute.KeyValue
	var logAttrs []slog.Attr
	if input.UserID != nil {
		attrs = append(attrs, attribute.Int64("user.id", *input.UserID))
		logAttrs = append(logAttrs, slog.Int64("user.id", *input.UserID))
	}
	if input.ClientID != nil {
		attrs = append(attrs, attribute.Int64("client.id", *input.ClientID))
		logAttrs = append(logAttrs, slog.Int64("client.id", *input.ClientID))
	}
	if input.Status != nil {
		attrs = append(attrs, attribute.String("order.status", *input.Status))
		logAttrs = append(logAttrs, slog.String("order.status", *input.Status))
	}
	ctx, span := s.startSpan(ctx, "Service.ListOrders", attrs...)
	defer span.End()

	result, err := s.inner.ListOrders(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders", logAttrs...)
	}
	span.SetAttributes(attribute.Int("order.result.count", len(result)))
	s.logInfo(ctx, "listed orders", append(logAttrs, slog.Int("count", len(result)))...)
	return result, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "Service.DeleteOrder", attribute.String("order.id", id))
	defer span.End()

	s.logInfo(ctx, "deleting order", slog.String("order.id", id))
	if err := s.inner.DeleteOrder(ctx, id); err != nil {
		return s.handleError(ctx, span, err, "failed to delete order", slog.String("order.id", id))
	}
	s.metrics.recordDeleted(ctx)
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, input types.UpdateStatusInput) (*domain.Order, error) {
	ctx, span := s.startSpan(ctx, "Service.UpdateStatus",
		attribute.String("order.id", input.OrderID),
		attribute.String("order.status.requested", input.Status),
	)
	defer span.End()

	s.logInfo(ctx, "updating order status", slog.String("order.id", input.OrderID), slog.String("order.status.requested", input.Status))
	order, err := s.inner.UpdateStatus(ctx, input)
	if err != nil {
		s.metrics.recordTransition(ctx, input.Status, outcomeFor(err))
		return nil, s.handleError(ctx, span, err, "failed to update order status", slog.String("order.id", input.OrderID))
	}
	s.metrics.recordTransition(ctx, string(order.Status), "applied")
	s.logInfo(ctx, "order status updated", slog.String("order.id", order.ID), slog.String("order.status", string(order.Status)))
	return order, nil
}

func (s *Service) PendingCommittedAmount(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	ctx, span := s.startSpan(ctx, "Service.PendingCommittedAmount", attribute.Int64("client.id", clientID))
	defer span.End()

	amount, err := s.inner.PendingCommittedAmount(ctx, clientID)
	if err != nil {
		return decimal.Zero, s.handleError(ctx, span, err, "failed to sum committed orders", slog.Int64("client.id", clientID))
	}
	span.SetAttributes(attribute.String("client.pending_amount", amount.String()))
	return amount, nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ports.ErrConcurrentUpdate):
		return "conflict"
	case errors.Is(err, ports.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	ordersCreated     metric.Int64Counter
	ordersDeleted     metric.Int64Counter
	statusTransitions metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	ordersCreated, _ := m.Int64Counter("orders.service.created", metric.WithDescription("Orders taken through intake, by resulting status"))
	ordersDeleted, _ := m.Int64Counter("orders.service.deleted", metric.WithDescription("Orders removed administratively"))
	statusTransitions, _ := m.Int64Counter("orders.service.transitions", metric.WithDescription("Requested status transitions, by target and outcome"))
	return serviceMetrics{
		ordersCreated:     ordersCreated,
		ordersDeleted:     ordersDeleted,
		statusTransitions: statusTransitions,
	}
}

func (m serviceMetrics) recordCreated(ctx context.Context, status domain.Status) {
	addCounter(ctx, m.ordersCreated, 1, attribute.String("order.status", string(status)))
}

func (m serviceMetrics) recordDeleted(ctx context.Context) {
	addCounter(ctx, m.ordersDeleted, 1)
}

func (m serviceMetrics) recordTransition(ctx context.Context, status, outcome string) {
	addCounter(ctx, m.statusTransitions, 1,
		attribute.String("order.status", status),
		attribute.String("outcome", outcome),
	)
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
