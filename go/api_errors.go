package orderserver

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	ordersapp "github.com/Apurer/order-ledger/internal/domains/orders/application"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	ordersports "github.com/Apurer/order-ledger/internal/domains/orders/ports"
	apierrors "github.com/Apurer/order-ledger/internal/shared/errors"
)

var orderResponder = apierrors.NewResponder("", mapOrderError)

// respondOrderError turns a service error into an RFC 7807 response.
func respondOrderError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	orderResponder.RespondError(c, err)
}

// respondOrderLookupError names the order that was looked up when it is missing.
func respondOrderLookupError(c *gin.Context, orderID string, err error) {
	if errors.Is(err, ordersports.ErrNotFound) {
		orderResponder.NotFound(c, "order", orderID)
		return
	}
	respondOrderError(c, err)
}

// respondBindingError reports struct validation failures per field and anything else as a bad request.
func respondBindingError(c *gin.Context, err error) {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		fields := make(map[string]string, len(invalid))
		for _, fieldErr := range invalid {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		orderResponder.ValidationFailed(c, fields)
		return
	}
	orderResponder.BadRequest(c, err.Error())
}

func mapOrderError(err error) (apierrors.ProblemDetail, bool) {
	detail := err.Error()
	switch {
	case errors.Is(err, ordersapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(detail), true
	case errors.Is(err, ordersports.ErrNotFound),
		errors.Is(err, ordersports.ErrClientNotFound),
		errors.Is(err, ordersports.ErrProductNotFound):
		return apierrors.ErrNotFound.WithDetail(detail), true
	case errors.Is(err, domain.ErrInvalidTransition):
		return apierrors.NewConflictProblem("invalid-transition", detail), true
	case errors.Is(err, ordersports.ErrConcurrentUpdate):
		return apierrors.NewConflictProblem("concurrent-update", detail), true
	case errors.Is(err, ordersports.ErrIdempotencyConflict):
		return apierrors.NewConflictProblem("idempotency-conflict", detail), true
	case errors.Is(err, ordersports.ErrIdempotencyInProgress):
		return apierrors.NewConflictProblem("idempotency-in-progress", detail), true
	case errors.Is(err, ordersports.ErrUpstreamUnavailable):
		return apierrors.ErrUnavailable.WithDetail(detail), true
	}
	return apierrors.ProblemDetail{}, false
}
