package ports

import (
	"context"
	"errors"
	"slices"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrConcurrentUpdate = errors.New("order was modified concurrently")
)

// OrderFilter narrows a Find query. Fields combine with AND, values within a field with OR.
// A nil or empty field does not constrain the result.
type OrderFilter struct {
	ClientIDs []int64
	Statuses  []domain.Status
}

// Matches reports whether the order satisfies the filter.
func (f OrderFilter) Matches(order *domain.Order) bool {
	if order == nil {
		return false
	}
	if len(f.ClientIDs) > 0 && !slices.Contains(f.ClientIDs, order.ClientID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, order.Status) {
		return false
	}
	return true
}

// Repository persists order records.
type Repository interface {
	// Save inserts the order when ID is empty, otherwise updates it if Version still matches.
	Save(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Order, error)
	Find(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
}
