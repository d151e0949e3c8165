package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

// CreditPolicy decides whether a priced order fits the client's credit.
// Admit returns nil to admit, ErrInsufficientCredit to reject, and an error wrapping
// ports.ErrUpstreamUnavailable when no decision could be made.
type CreditPolicy interface {
	Admit(ctx context.Context, client *ports.Client, order *domain.Order) error
}

// LocalCreditPolicy sums the client's committed orders from the ledger and compares
// against the ceiling returned by the registry. Concurrent admissions for one client
// read the same committed snapshot; nothing serializes them.
type LocalCreditPolicy struct {
	repo ports.Repository
}

func NewLocalCreditPolicy(repo ports.Repository) *LocalCreditPolicy {
	return &LocalCreditPolicy{repo: repo}
}

func (p *LocalCreditPolicy) Admit(ctx context.Context, client *ports.Client, order *domain.Order) error {
	if client == nil {
		return fmt.Errorf("%w: client missing for credit check", ports.ErrUpstreamUnavailable)
	}
	committed, err := committedAmount(ctx, p.repo, order.ClientID)
	if err != nil {
		return fmt.Errorf("%w: committed amount: %w", ports.ErrUpstreamUnavailable, err)
	}
	if committed.Add(order.TotalAmount).GreaterThan(client.CreditCeiling) {
		return fmt.Errorf("%w: committed %s + order %s exceeds ceiling %s",
			ErrInsufficientCredit, committed, order.TotalAmount, client.CreditCeiling)
	}
	return nil
}

// RegistryCreditPolicy lets the client registry make the decision.
type RegistryCreditPolicy struct {
	registry ports.ClientRegistry
}

func NewRegistryCreditPolicy(registry ports.ClientRegistry) *RegistryCreditPolicy {
	return &RegistryCreditPolicy{registry: registry}
}

func (p *RegistryCreditPolicy) Admit(ctx context.Context, _ *ports.Client, order *domain.Order) error {
	ok, err := p.registry.HasSufficientCredit(ctx, order.ClientID, order.TotalAmount)
	if err != nil {
		if errors.Is(err, ports.ErrUpstreamUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ports.ErrUpstreamUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: registry declined %s", ErrInsufficientCredit, order.TotalAmount)
	}
	return nil
}

func committedAmount(ctx context.Context, repo ports.Repository, clientID int64) (decimal.Decimal, error) {
	orders, err := repo.Find(ctx, ports.OrderFilter{
		ClientIDs: []int64{clientID},
		Statuses:  domain.CommittedStatuses(),
	})
	if err != nil {
		return decimal.Zero, err
	}
	return lo.Reduce(orders, func(acc decimal.Decimal, order *domain.Order, _ int) decimal.Decimal {
		return acc.Add(order.TotalAmount)
	}, decimal.Zero), nil
}

var (
	_ CreditPolicy = (*LocalCreditPolicy)(nil)
	_ CreditPolicy = (*RegistryCreditPolicy)(nil)
)
