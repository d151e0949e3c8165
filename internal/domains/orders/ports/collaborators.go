package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrClientNotFound      = errors.New("client not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)

// Client is the registry view the ledger needs.
type Client struct {
	ID            int64
	CreditCeiling decimal.Decimal
}

// Product is the catalog view the ledger needs.
type Product struct {
	ID    int64
	Price decimal.Decimal
}

// ClientRegistry resolves clients and their credit.
// Definitive absence is reported as ErrClientNotFound; every other failure wraps ErrUpstreamUnavailable.
type ClientRegistry interface {
	GetClient(ctx context.Context, id int64) (*Client, error)
	HasSufficientCredit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error)
	// ClientIDsForUser returns an empty slice when the user owns no clients.
	ClientIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

// Catalog resolves products, prices and stock availability.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	HasSufficientStock(ctx context.Context, id int64, quantity int) (bool, error)
}
