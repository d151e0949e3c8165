package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

// Service runs the order saga and the read side of the ledger.
type Service struct {
	repo           ports.Repository
	registry       ports.ClientRegistry
	catalog        ports.Catalog
	publisher      ports.EventPublisher
	credit         CreditPolicy
	idempotency    ports.IdempotencyStore
	reconciliation ports.ReconciliationLog
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
}

// Option customizes the service.
type Option func(*Service)

// WithCreditPolicy replaces the default ledger-side credit policy.
func WithCreditPolicy(policy CreditPolicy) Option {
	return func(s *Service) {
		if policy != nil {
			s.credit = policy
		}
	}
}

// WithIdempotencyStore enables Idempotency-Key replay on CreateOrder.
func WithIdempotencyStore(store ports.IdempotencyStore) Option {
	return func(s *Service) {
		s.idempotency = store
	}
}

// WithReconciliationLog keeps StockReturn events that failed to publish.
func WithReconciliationLog(log ports.ReconciliationLog) Option {
	return func(s *Service) {
		s.reconciliation = log
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService wires the saga with its collaborators.
func NewService(repo ports.Repository, registry ports.ClientRegistry, catalog ports.Catalog, publisher ports.EventPublisher, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		registry:  registry,
		catalog:   catalog,
		publisher: publisher,
		credit:    NewLocalCreditPolicy(repo),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder validates, prices and admits an order. Business rejections and
// collaborator outages end in a persisted REJECTED or RECEIVED order, not an error.
func (s *Service) CreateOrder(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" || s.idempotency == nil {
		return s.intake(ctx, input)
	}

	fingerprint, err := FingerprintCreateOrder(input)
	if err != nil {
		return nil, err
	}
	record, reserved, err := s.idempotency.Reserve(ctx, key, fingerprint)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return s.replay(ctx, record, fingerprint)
	}

	order, err := s.intake(ctx, input)
	if err != nil {
		if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to release idempotency key",
				slog.String("error", releaseErr.Error()))
		}
		return nil, err
	}
	if err := s.idempotency.Bind(ctx, key, order.ID); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to bind idempotency key",
			slog.String("order.id", order.ID), slog.String("error", err.Error()))
	}
	return order, nil
}

// replay answers a create whose key is already held by another request.
func (s *Service) replay(ctx context.Context, record *ports.IdempotencyRecord, fingerprint string) (*domain.Order, error) {
	if record.RequestHash != fingerprint {
		return nil, ports.ErrIdempotencyConflict
	}
	if record.Pending() {
		return nil, ports.ErrIdempotencyInProgress
	}
	order, err := s.repo.GetByID(ctx, record.OrderID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s created for this key was deleted", ports.ErrIdempotencyConflict, record.OrderID)
	}
	return order, err
}

func (s *Service) intake(ctx context.Context, input types.CreateOrderInput) (*domain.Order, error) {
	order, err := domain.NewOrder(input.ClientID, input.SiteID, input.Notes, s.now())
	if err != nil {
		return nil, mapError(err)
	}

	client, err := s.registry.GetClient(ctx, input.ClientID)
	if err != nil {
		return s.settleIntake(ctx, order, "client lookup", err)
	}
	for _, requested := range input.Lines {
		product, err := s.catalog.GetProduct(ctx, requested.ProductID)
		if err != nil {
			return s.settleIntake(ctx, order, "product lookup", err, slog.Int64("product.id", requested.ProductID))
		}
		line, err := domain.NewLine(requested.ProductID, requested.Quantity, product.Price)
		if err != nil {
			return s.settleIntake(ctx, order, "product pricing",
				fmt.Errorf("%w: product %d: %w", ports.ErrUpstreamUnavailable, requested.ProductID, err))
		}
		order.AddLine(line)
	}

	if err := s.credit.Admit(ctx, client, order); err != nil {
		return s.settleIntake(ctx, order, "credit check", err)
	}
	if err := order.Accept(); err != nil {
		return nil, mapError(err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order accepted",
		slog.String("order.id", saved.ID), slog.String("order.total", saved.TotalAmount.String()))
	return s.commitStock(ctx, saved)
}

// settleIntake records a short-circuited intake. Definitive answers reject; anything else parks.
func (s *Service) settleIntake(ctx context.Context, order *domain.Order, step string, cause error, attrs ...slog.Attr) (*domain.Order, error) {
	if isRejection(cause) {
		order.Reject()
	} else {
		order.Park()
	}
	attrs = append(attrs,
		slog.String("intake.step", step),
		slog.Int64("client.id", order.ClientID),
		slog.String("order.status", string(order.Status)),
		slog.String("error", cause.Error()),
	)
	s.logger.LogAttrs(ctx, slog.LevelWarn, "order intake stopped", attrs...)
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func isRejection(err error) bool {
	return errors.Is(err, ports.ErrClientNotFound) ||
		errors.Is(err, ports.ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientCredit)
}

// commitStock moves an accepted order to IN_PREPARATION once every line is in stock
// and the commit event was handed to the broker. Otherwise the order rests in ACCEPTED.
func (s *Service) commitStock(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := s.checkStock(ctx, order); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "order awaiting stock",
			slog.String("order.id", order.ID), slog.String("reason", err.Error()))
		return order, nil
	}
	event := domain.NewStockCommit(s.newID(), order, s.now())
	if err := s.publisher.PublishStockCommit(ctx, event); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "stock commit publish failed, order stays accepted",
			slog.String("order.id", order.ID), slog.String("event.id", event.EventID), slog.String("error", err.Error()))
		return order, nil
	}
	if err := order.StartPreparation(); err != nil {
		return nil, err
	}
	saved, err := s.repo.Save(ctx, order)
	if errors.Is(err, ports.ErrConcurrentUpdate) {
		return s.afterCommitRace(ctx, order.ID, event.EventID)
	}
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// afterCommitRace resolves an order changed by someone else after its stock commit went out.
// A cancellation in between gets the stock back; any other state is reported as stored.
func (s *Service) afterCommitRace(ctx context.Context, orderID, commitEventID string) (*domain.Order, error) {
	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "order changed concurrently after stock commit",
		slog.String("order.id", orderID), slog.String("event.id", commitEventID),
		slog.String("order.status", string(current.Status)))
	if current.Status == domain.StatusCancelled {
		s.returnStock(ctx, current)
	}
	return current, nil
}

func (s *Service) checkStock(ctx context.Context, order *domain.Order) error {
	for _, line := range order.Lines {
		ok, err := s.catalog.HasSufficientStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return fmt.Errorf("stock check for product %d: %w", line.ProductID, err)
		}
		if !ok {
			return fmt.Errorf("%w: product %d quantity %d", ErrInsufficientStock, line.ProductID, line.Quantity)
		}
	}
	return nil
}

// UpdateStatus applies an explicit transition. Cancelling an order in preparation
// publishes a StockReturn; a failed publish is logged and kept for replay.
func (s *Service) UpdateStatus(ctx context.Context, input types.UpdateStatusInput) (*domain.Order, error) {
	next, err := domain.ParseStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, mapError(err)
	}
	order, err := s.repo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	prior := order.Status
	if err := order.TransitionTo(next); err != nil {
		return nil, err
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	if prior == domain.StatusInPreparation && next == domain.StatusCancelled {
		s.returnStock(ctx, saved)
	}
	return saved, nil
}

func (s *Service) returnStock(ctx context.Context, order *domain.Order) {
	event := domain.NewStockReturn(s.newID(), order, s.now())
	err := s.publisher.PublishStockReturn(ctx, event)
	if err == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelError, "stock return publish failed, manual reconciliation needed",
		slog.String("order.id", order.ID), slog.String("event.id", event.EventID), slog.String("error", err.Error()))
	if s.reconciliation == nil {
		return
	}
	if err := s.reconciliation.RecordStockReturn(ctx, event); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to record stock return for reconciliation",
			slog.String("order.id", order.ID), slog.String("event.id", event.EventID), slog.String("error", err.Error()))
	}
}

// PendingCommittedAmount sums the client's orders still holding credit.
func (s *Service) PendingCommittedAmount(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	if clientID <= 0 {
		return decimal.Zero, mapError(domain.ErrInvalidClientID)
	}
	return committedAmount(ctx, s.repo, clientID)
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// DeleteOrder removes an order outright, bypassing the saga.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func validateCreateInput(input types.CreateOrderInput) error {
	if input.ClientID <= 0 {
		return mapError(domain.ErrInvalidClientID)
	}
	if len(input.Lines) == 0 {
		return mapError(domain.ErrNoLines)
	}
	for i, line := range input.Lines {
		if line.ProductID <= 0 {
			return fmt.Errorf("line %d: %w", i, mapError(domain.ErrInvalidProductID))
		}
		if line.Quantity < 1 {
			return fmt.Errorf("line %d: %w", i, mapError(domain.ErrInvalidQuantity))
		}
	}
	return nil
}

var _ ports.Service = (*Service)(nil)
