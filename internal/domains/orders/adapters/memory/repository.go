package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory order ledger used when no database is configured.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	now    func() time.Time
	newID  func() string
}

func NewRepository() *Repository {
	return &Repository{
		orders: map[string]*domain.Order{},
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// WithIDGenerator overrides id assignment for new orders.
func (r *Repository) WithIDGenerator(newID func() string) {
	if newID != nil {
		r.mu.Lock()
		r.newID = newID
		r.mu.Unlock()
	}
}

func (r *Repository) Save(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	clone := order.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if clone.ID == "" {
		clone.ID = r.newID()
		clone.Version = 1
	} else {
		existing, ok := r.orders[clone.ID]
		if !ok {
			return nil, ports.ErrNotFound
		}
		if existing.Version != clone.Version {
			return nil, ports.ErrConcurrentUpdate
		}
		clone.Version++
	}
	clone.UpdatedAt = r.now().UTC()
	r.orders[clone.ID] = clone
	return clone.Clone(), nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *Repository) List(ctx context.Context) ([]*domain.Order, error) {
	return r.Find(ctx, ports.OrderFilter{})
}

// Find returns matching orders oldest first.
func (r *Repository) Find(_ context.Context, filter ports.OrderFilter) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Matches(order) {
			list = append(list, order.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}
