package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Apurer/order-ledger/internal/clients/http/rest"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var _ ports.Catalog = (*Client)(nil)

// Client implements the catalog port over HTTP.
type Client struct {
	rest *rest.Client
}

func NewClient(api *rest.Client) *Client {
	return &Client{rest: api}
}

type productDTO struct {
	ID    int64           `json:"id"`
	Price decimal.Decimal `json:"price"`
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*ports.Product, error) {
	var dto productDTO
	if err := c.get(ctx, fmt.Sprintf("/api/products/%d", id), &dto); err != nil {
		return nil, err
	}
	return &ports.Product{ID: dto.ID, Price: dto.Price}, nil
}

// HasSufficientStock reports a missing product as unavailable upstream, not as a rejection.
func (c *Client) HasSufficientStock(ctx context.Context, id int64, quantity int) (bool, error) {
	var ok bool
	if err := c.get(ctx, fmt.Sprintf("/api/products/%d/stock/%d", id, quantity), &ok); err != nil {
		if errors.Is(err, ports.ErrProductNotFound) {
			return false, fmt.Errorf("%w: product %d vanished before stock check", ports.ErrUpstreamUnavailable, id)
		}
		return false, err
	}
	return ok, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c == nil || c.rest == nil {
		return fmt.Errorf("%w: catalog client not configured", ports.ErrUpstreamUnavailable)
	}
	err := c.rest.GetJSON(ctx, path, nil, out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rest.ErrNotFound):
		return ports.ErrProductNotFound
	default:
		return fmt.Errorf("%w: %w", ports.ErrUpstreamUnavailable, err)
	}
}
