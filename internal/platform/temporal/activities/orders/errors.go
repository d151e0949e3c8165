package orders

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/order-ledger/internal/domains/orders/application"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

// Application error types carried across the workflow boundary.
const (
	ErrTypeInvalidInput        = "orders.InvalidInput"
	ErrTypeIdempotencyConflict = "orders.IdempotencyConflict"
	ErrTypeIdempotencyPending  = "orders.IdempotencyInProgress"
	ErrTypeUpstreamUnavailable = "orders.UpstreamUnavailable"
	ErrTypeInternal            = "orders.Internal"
)

var errorTypes = []struct {
	name     string
	sentinel error
}{
	{ErrTypeInvalidInput, application.ErrInvalidInput},
	{ErrTypeIdempotencyConflict, ports.ErrIdempotencyConflict},
	{ErrTypeIdempotencyPending, ports.ErrIdempotencyInProgress},
	{ErrTypeUpstreamUnavailable, ports.ErrUpstreamUnavailable},
}

// ToApplicationError tags err with a type the orchestrator can map back to a sentinel.
func ToApplicationError(err error) error {
	if err == nil {
		return nil
	}
	for _, t := range errorTypes {
		if errors.Is(err, t.sentinel) {
			return temporal.NewNonRetryableApplicationError(err.Error(), t.name, err)
		}
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInternal, err)
}

// FromWorkflowError restores the sentinel behind a workflow failure when one was tagged.
func FromWorkflowError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	for _, t := range errorTypes {
		if appErr.Type() == t.name {
			return &restoredError{sentinel: t.sentinel, msg: appErr.Error()}
		}
	}
	return err
}

// restoredError keeps the activity's message while matching the original sentinel.
type restoredError struct {
	sentinel error
	msg      string
}

func (e *restoredError) Error() string { return e.msg }

func (e *restoredError) Unwrap() error { return e.sentinel }
