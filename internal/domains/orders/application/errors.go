package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrInsufficientCredit is the admission outcome that rejects an order.
	ErrInsufficientCredit = errors.New("insufficient credit")
	// ErrInsufficientStock leaves an accepted order waiting for stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidClientID) ||
		errors.Is(err, domain.ErrInvalidProductID) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrNoLines) ||
		errors.Is(err, domain.ErrInvalidStatus) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
