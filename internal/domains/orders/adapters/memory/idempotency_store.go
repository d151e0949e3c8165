package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore keeps Idempotency-Key reservations in process memory.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]ports.IdempotencyRecord
	now     func() time.Time
	expiry  time.Duration
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		records: map[string]ports.IdempotencyRecord{},
		now:     time.Now,
		expiry:  ports.DefaultReservationExpiry,
	}
}

// WithClock overrides the time source for deterministic testing.
func (s *IdempotencyStore) WithClock(now func() time.Time) {
	if now != nil {
		s.mu.Lock()
		s.now = now
		s.mu.Unlock()
	}
}

func (s *IdempotencyStore) Reserve(_ context.Context, key, requestHash string) (*ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.records[key]; ok {
		if !existing.Pending() || now.Sub(existing.UpdatedAt) < s.expiry {
			return &existing, false, nil
		}
	}
	record := ports.IdempotencyRecord{Key: key, RequestHash: requestHash, CreatedAt: now, UpdatedAt: now}
	s.records[key] = record
	return &record, true, nil
}

func (s *IdempotencyStore) Bind(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return fmt.Errorf("idempotency key %q is not reserved", key)
	}
	if !record.Pending() && record.OrderID != orderID {
		return ports.ErrIdempotencyConflict
	}
	record.OrderID = orderID
	record.UpdatedAt = s.now()
	s.records[key] = record
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[key]; ok && record.Pending() {
		delete(s.records, key)
	}
	return nil
}
