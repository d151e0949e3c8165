package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Apurer/order-ledger/internal/clients/http/rest"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var _ ports.ClientRegistry = (*Client)(nil)

// Client implements the client registry port over HTTP.
type Client struct {
	rest *rest.Client
}

func NewClient(api *rest.Client) *Client {
	return &Client{rest: api}
}

type clientDTO struct {
	ID            int64           `json:"id"`
	CreditCeiling decimal.Decimal `json:"creditCeiling"`
}

type clientRef struct {
	ID int64 `json:"id"`
}

func (c *Client) GetClient(ctx context.Context, id int64) (*ports.Client, error) {
	var dto clientDTO
	if err := c.get(ctx, "/api/clients/"+strconv.FormatInt(id, 10), nil, &dto); err != nil {
		return nil, err
	}
	return &ports.Client{ID: dto.ID, CreditCeiling: dto.CreditCeiling}, nil
}

func (c *Client) HasSufficientCredit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	var ok bool
	path := fmt.Sprintf("/api/clients/%d/credit/%s", id, amount.String())
	if err := c.get(ctx, path, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ClientIDsForUser treats an unknown user as owning no clients.
func (c *Client) ClientIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var refs []clientRef
	query := url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	if err := c.get(ctx, "/api/clients", query, &refs); err != nil {
		if errors.Is(err, ports.ErrClientNotFound) {
			return []int64{}, nil
		}
		return nil, err
	}
	return lo.Uniq(lo.Map(refs, func(ref clientRef, _ int) int64 { return ref.ID })), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c == nil || c.rest == nil {
		return fmt.Errorf("%w: registry client not configured", ports.ErrUpstreamUnavailable)
	}
	err := c.rest.GetJSON(ctx, path, query, out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rest.ErrNotFound):
		return ports.ErrClientNotFound
	default:
		return fmt.Errorf("%w: %w", ports.ErrUpstreamUnavailable, err)
	}
}
