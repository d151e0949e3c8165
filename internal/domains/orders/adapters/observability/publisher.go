package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var (
	_ ports.EventPublisher    = (*Publisher)(nil)
	_ ports.ReconciliationLog = (*ReconciliationLog)(nil)
)

// Publisher counts and traces stock event publishes.
type Publisher struct {
	inner     ports.EventPublisher
	tracer    trace.Tracer
	published metric.Int64Counter
	failures  metric.Int64Counter
}

// NewPublisher decorates inner. A nil tracer or meter disables that signal.
func NewPublisher(inner ports.EventPublisher, tracer trace.Tracer, meter metric.Meter) *Publisher {
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	p := &Publisher{inner: inner, tracer: tracer}
	if meter != nil {
		p.published, _ = meter.Int64Counter("orders.events.published", metric.WithDescription("Stock events accepted by the broker"))
		p.failures, _ = meter.Int64Counter("orders.events.publish_failures", metric.WithDescription("Stock events the broker did not accept"))
	}
	return p
}

func (p *Publisher) PublishStockCommit(ctx context.Context, event domain.StockCommit) error {
	ctx, span := p.start(ctx, event.EventName(), event.EventID, event.OrderID)
	defer span.End()
	return p.finish(ctx, span, event.EventName(), p.inner.PublishStockCommit(ctx, event))
}

func (p *Publisher) PublishStockReturn(ctx context.Context, event domain.StockReturn) error {
	ctx, span := p.start(ctx, event.EventName(), event.EventID, event.OrderID)
	defer span.End()
	return p.finish(ctx, span, event.EventName(), p.inner.PublishStockReturn(ctx, event))
}

func (p *Publisher) start(ctx context.Context, name, eventID, orderID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "Publish "+name,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("event.id", eventID), attribute.String("order.id", orderID)),
	)
}

func (p *Publisher) finish(ctx context.Context, span trace.Span, name string, err error) error {
	attrs := metric.WithAttributes(attribute.String("event.name", name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p.failures != nil {
			p.failures.Add(ctx, 1, attrs)
		}
		return err
	}
	if p.published != nil {
		p.published.Add(ctx, 1, attrs)
	}
	return nil
}

// ReconciliationLog counts events parked for manual replay.
type ReconciliationLog struct {
	inner   ports.ReconciliationLog
	logger  *slog.Logger
	entries metric.Int64Counter
}

func NewReconciliationLog(inner ports.ReconciliationLog, logger *slog.Logger, meter metric.Meter) *ReconciliationLog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &ReconciliationLog{inner: inner, logger: logger}
	if meter != nil {
		l.entries, _ = meter.Int64Counter("orders.reconciliation.entries", metric.WithDescription("Stock returns parked for replay"))
	}
	return l
}

func (l *ReconciliationLog) RecordStockReturn(ctx context.Context, event domain.StockReturn) error {
	if err := l.inner.RecordStockReturn(ctx, event); err != nil {
		return err
	}
	if l.entries != nil {
		l.entries.Add(ctx, 1)
	}
	l.logger.LogAttrs(ctx, slog.LevelWarn, "stock return parked for reconciliation",
		slog.String("order.id", event.OrderID),
		slog.String("order.number", event.OrderNumber),
		slog.String("event.id", event.EventID),
	)
	return nil
}
