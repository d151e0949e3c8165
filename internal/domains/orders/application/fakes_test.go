package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var fixedNow = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	seq       int
	findCalls int
	listCalls int
	findErr   error
	saveErr   error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*domain.Order{}}
}

func (f *fakeOrderRepo) Save(_ context.Context, order *domain.Order) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	clone := order.Clone()
	if clone.ID == "" {
		f.seq++
		clone.ID = fmt.Sprintf("ord-%d", f.seq)
		clone.Version = 1
	} else {
		if existing, ok := f.orders[clone.ID]; ok && existing.Version != clone.Version {
			return nil, ports.ErrConcurrentUpdate
		}
		clone.Version++
	}
	f.orders[clone.ID] = clone
	return clone.Clone(), nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		return o.Clone(), nil
	}
	return nil, ports.ErrNotFound
}

func (f *fakeOrderRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return ports.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeOrderRepo) List(_ context.Context) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	list := make([]*domain.Order, 0, len(f.orders))
	for _, o := range f.orders {
		list = append(list, o.Clone())
	}
	return list, nil
}

func (f *fakeOrderRepo) Find(_ context.Context, filter ports.OrderFilter) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var list []*domain.Order
	for _, o := range f.orders {
		if filter.Matches(o) {
			list = append(list, o.Clone())
		}
	}
	return list, nil
}

// seed stores an order with a single line totalling amount.
func (f *fakeOrderRepo) seed(clientID int64, status domain.Status, amount string) *domain.Order {
	order, err := domain.NewOrder(clientID, nil, "", fixedNow)
	if err != nil {
		panic(err)
	}
	line, err := domain.NewLine(99, 1, decimal.RequireFromString(amount))
	if err != nil {
		panic(err)
	}
	order.AddLine(line)
	order.Status = status
	saved, err := f.Save(context.Background(), order)
	if err != nil {
		panic(err)
	}
	return saved
}

type fakeRegistry struct {
	mu            sync.Mutex
	clients       map[int64]decimal.Decimal
	getErr        error
	creditOK      bool
	creditErr     error
	userClients   map[int64][]int64
	userErr       error
	getCalls      int
	creditCalls   int
	userLookupsBy []int64
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{clients: map[int64]decimal.Decimal{}, userClients: map[int64][]int64{}, creditOK: true}
}

func (f *fakeRegistry) GetClient(_ context.Context, id int64) (*ports.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	ceiling, ok := f.clients[id]
	if !ok {
		return nil, ports.ErrClientNotFound
	}
	return &ports.Client{ID: id, CreditCeiling: ceiling}, nil
}

func (f *fakeRegistry) HasSufficientCredit(_ context.Context, _ int64, _ decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditCalls++
	return f.creditOK, f.creditErr
}

func (f *fakeRegistry) ClientIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userLookupsBy = append(f.userLookupsBy, userID)
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.userClients[userID], nil
}

type fakeCatalog struct {
	mu         sync.Mutex
	beforeGet  func(id int64)
	prices     map[int64]decimal.Decimal
	productErr map[int64]error
	short      map[int64]bool
	stockErr   error
	stockCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		prices:     map[int64]decimal.Decimal{},
		productErr: map[int64]error{},
		short:      map[int64]bool{},
	}
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*ports.Product, error) {
	if f.beforeGet != nil {
		f.beforeGet(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.productErr[id]; ok {
		return nil, err
	}
	price, ok := f.prices[id]
	if !ok {
		return nil, ports.ErrProductNotFound
	}
	return &ports.Product{ID: id, Price: price}, nil
}

func (f *fakeCatalog) HasSufficientStock(_ context.Context, id int64, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stockCalls++
	if f.stockErr != nil {
		return false, f.stockErr
	}
	return !f.short[id], nil
}

type fakePublisher struct {
	mu        sync.Mutex
	onCommit  func(event domain.StockCommit)
	commits   []domain.StockCommit
	returns   []domain.StockReturn
	commitErr error
	returnErr error
}

func (f *fakePublisher) PublishStockCommit(_ context.Context, event domain.StockCommit) error {
	f.mu.Lock()
	if f.commitErr != nil {
		f.mu.Unlock()
		return f.commitErr
	}
	f.commits = append(f.commits, event)
	hook := f.onCommit
	f.mu.Unlock()
	if hook != nil {
		hook(event)
	}
	return nil
}

func (f *fakePublisher) PublishStockReturn(_ context.Context, event domain.StockReturn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.returnErr != nil {
		return f.returnErr
	}
	f.returns = append(f.returns, event)
	return nil
}

type fakeReconciliation struct {
	recorded []domain.StockReturn
}

func (f *fakeReconciliation) RecordStockReturn(_ context.Context, event domain.StockReturn) error {
	f.recorded = append(f.recorded, event)
	return nil
}

type sagaFixture struct {
	repo      *fakeOrderRepo
	registry  *fakeRegistry
	catalog   *fakeCatalog
	publisher *fakePublisher
	recon     *fakeReconciliation
	svc       *Service
}

func newSagaFixture(opts ...Option) *sagaFixture {
	f := &sagaFixture{
		repo:      newFakeOrderRepo(),
		registry:  newFakeRegistry(),
		catalog:   newFakeCatalog(),
		publisher: &fakePublisher{},
		recon:     &fakeReconciliation{},
	}
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithReconciliationLog(f.recon),
	}
	f.svc = NewService(f.repo, f.registry, f.catalog, f.publisher, append(base, opts...)...)
	return f
}

var errTimeout = errors.New("context deadline exceeded")
