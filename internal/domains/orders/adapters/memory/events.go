package memory

import (
	"context"
	"sync"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var (
	_ ports.EventPublisher    = (*Publisher)(nil)
	_ ports.ReconciliationLog = (*ReconciliationLog)(nil)
)

// Publisher records stock events instead of sending them to a broker.
// It stands in for Kafka in local runs and tests.
type Publisher struct {
	mu      sync.Mutex
	commits []domain.StockCommit
	returns []domain.StockReturn
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishStockCommit(_ context.Context, event domain.StockCommit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commits = append(p.commits, event)
	return nil
}

func (p *Publisher) PublishStockReturn(_ context.Context, event domain.StockReturn) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.returns = append(p.returns, event)
	return nil
}

// Commits returns a snapshot of published commit events.
func (p *Publisher) Commits() []domain.StockCommit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.StockCommit(nil), p.commits...)
}

// Returns returns a snapshot of published return events.
func (p *Publisher) Returns() []domain.StockReturn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.StockReturn(nil), p.returns...)
}

// ReconciliationLog holds StockReturn events pending manual replay.
type ReconciliationLog struct {
	mu      sync.Mutex
	pending []domain.StockReturn
}

func NewReconciliationLog() *ReconciliationLog {
	return &ReconciliationLog{}
}

func (l *ReconciliationLog) RecordStockReturn(_ context.Context, event domain.StockReturn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, event)
	return nil
}

func (l *ReconciliationLog) Pending() []domain.StockReturn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.StockReturn(nil), l.pending...)
}
