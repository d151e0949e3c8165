package mapper

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

// LineRequest is a requested line in a create payload.
type LineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest is the POST /api/orders body.
type CreateOrderRequest struct {
	ClientID int64         `json:"clientId"`
	SiteID   *int64        `json:"siteId,omitempty"`
	Notes    string        `json:"notes,omitempty"`
	Lines    []LineRequest `json:"lines"`
}

// UpdateStatusRequest is the PUT /api/orders/:id/status body.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Line is the transport representation of a priced line. Money travels as decimal strings.
type Line struct {
	ProductID  int64  `json:"productId"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	LineAmount string `json:"lineAmount"`
}

// Order is the transport representation of an order.
type Order struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"orderNumber"`
	ClientID    int64     `json:"clientId"`
	SiteID      *int64    `json:"siteId,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Lines       []Line    `json:"lines"`
	TotalAmount string    `json:"totalAmount"`
	Status      string    `json:"status"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// PendingAmount answers the pending-commitment query.
type PendingAmount struct {
	ClientID      int64  `json:"clientId"`
	PendingAmount string `json:"pendingAmount"`
}

// ToCreateInput maps a create payload to the application input.
func ToCreateInput(req CreateOrderRequest, idempotencyKey string) types.CreateOrderInput {
	lines := make([]types.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, types.LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return types.CreateOrderInput{
		ClientID:       req.ClientID,
		SiteID:         req.SiteID,
		Notes:          req.Notes,
		Lines:          lines,
		IdempotencyKey: idempotencyKey,
	}
}

// FromDomainOrder converts a domain order to the transport representation.
func FromDomainOrder(order *domain.Order) Order {
	if order == nil {
		return Order{}
	}
	lines := make([]Line, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, Line{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  formatMoney(l.UnitPrice),
			LineAmount: formatMoney(l.LineAmount),
		})
	}
	return Order{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		ClientID:    order.ClientID,
		SiteID:      order.SiteID,
		Notes:       order.Notes,
		Lines:       lines,
		TotalAmount: formatMoney(order.TotalAmount),
		Status:      string(order.Status),
		Version:     order.Version,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

// FromDomainOrders converts a list, never returning nil.
func FromDomainOrders(orders []*domain.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromDomainOrder(o))
	}
	return out
}

// FromPendingAmount formats the pending amount for a client.
func FromPendingAmount(clientID int64, amount decimal.Decimal) PendingAmount {
	return PendingAmount{ClientID: clientID, PendingAmount: formatMoney(amount)}
}

// formatMoney keeps every stored digit and pads to at least two decimal places.
func formatMoney(amount decimal.Decimal) string {
	places := int32(2)
	if exp := -amount.Exponent(); exp > places {
		places = exp
	}
	return amount.StringFixed(places)
}
