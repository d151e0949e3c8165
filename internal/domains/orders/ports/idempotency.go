package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIdempotencyConflict indicates the same key was used with a different payload,
	// or that the order it created no longer exists.
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	// ErrIdempotencyInProgress indicates the key is held by a request that has not finished.
	ErrIdempotencyInProgress = errors.New("idempotency key in progress")
)

// IdempotencyRecord associates a client-supplied key with the order it created.
// An empty OrderID marks a reservation whose intake is still running.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	OrderID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Pending reports whether the key is reserved but not yet bound to an order.
func (r IdempotencyRecord) Pending() bool {
	return r.OrderID == ""
}

// IdempotencyStore serializes creation requests sharing an Idempotency-Key.
type IdempotencyStore interface {
	// Reserve claims the key for a request before any work starts. When the key is already
	// held it returns the stored record and false. Unbound reservations older than the
	// store's expiry are reclaimed.
	Reserve(ctx context.Context, key, requestHash string) (*IdempotencyRecord, bool, error)
	// Bind attaches the created order to a reservation.
	Bind(ctx context.Context, key, orderID string) error
	// Release drops an unbound reservation so the key can be retried.
	Release(ctx context.Context, key string) error
}

// DefaultReservationExpiry bounds how long an unbound reservation blocks its key.
const DefaultReservationExpiry = 5 * time.Minute
