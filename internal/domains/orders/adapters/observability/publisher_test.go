package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Apurer/order-ledger/internal/domains/orders/adapters/memory"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

type failingPublisher struct{ err error }

func (f failingPublisher) PublishStockCommit(context.Context, domain.StockCommit) error { return f.err }
func (f failingPublisher) PublishStockReturn(context.Context, domain.StockReturn) error { return f.err }

func TestPublisher_CountsFailures(t *testing.T) {
	tm := newTelemetry()
	tracer, meter := tm.tracer, tm.meter

	event := domain.NewStockReturn("evt-1", sampleOrder(domain.StatusCancelled), time.Now())
	failing := NewPublisher(failingPublisher{err: errors.New("broker down")}, tracer, meter)
	require.Error(t, failing.PublishStockReturn(context.Background(), event))

	ok := NewPublisher(memory.NewPublisher(), tracer, meter)
	require.NoError(t, ok.PublishStockReturn(context.Background(), event))

	assert.EqualValues(t, 1, tm.counter(t, "orders.events.publish_failures").DataPoints[0].Value)
	assert.EqualValues(t, 1, tm.counter(t, "orders.events.published").DataPoints[0].Value)

	ended := tm.spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, trace.SpanKindProducer, ended[0].SpanKind())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "Publish orders.stock.return", ended[1].Name())
}

func TestReconciliationLog_CountsEntries(t *testing.T) {
	tm := newTelemetry()
	inner := memory.NewReconciliationLog()
	log := NewReconciliationLog(inner, nil, tm.meter)

	event := domain.NewStockReturn("evt-2", sampleOrder(domain.StatusCancelled), time.Now())
	require.NoError(t, log.RecordStockReturn(context.Background(), event))

	assert.Len(t, inner.Pending(), 1)
	assert.EqualValues(t, 1, tm.counter(t, "orders.reconciliation.entries").DataPoints[0].Value)
}
