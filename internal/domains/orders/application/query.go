package application

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

// ListOrders filters orders by owning user, client and status.
// A user with no clients sees nothing; there is no fallback to all orders.
func (s *Service) ListOrders(ctx context.Context, input types.ListOrdersInput) ([]*domain.Order, error) {
	var filter ports.OrderFilter
	if input.Status != nil {
		status, err := domain.ParseStatus(*input.Status)
		if err != nil {
			return nil, mapError(err)
		}
		filter.Statuses = []domain.Status{status}
	}

	if input.UserID != nil {
		clientIDs, err := s.registry.ClientIDsForUser(ctx, *input.UserID)
		if err != nil {
			if errors.Is(err, ports.ErrClientNotFound) {
				return []*domain.Order{}, nil
			}
			return nil, err
		}
		clientIDs = lo.Uniq(clientIDs)
		if len(clientIDs) == 0 {
			return []*domain.Order{}, nil
		}
		if input.ClientID != nil {
			if !lo.Contains(clientIDs, *input.ClientID) {
				return []*domain.Order{}, nil
			}
			clientIDs = []int64{*input.ClientID}
		}
		filter.ClientIDs = clientIDs
		return s.repo.Find(ctx, filter)
	}

	if input.ClientID != nil {
		filter.ClientIDs = []int64{*input.ClientID}
	}
	if len(filter.ClientIDs) == 0 && len(filter.Statuses) == 0 {
		return s.repo.List(ctx)
	}
	return s.repo.Find(ctx, filter)
}
