package types

// LineInput is a requested order line. Prices are never taken from the request.
type LineInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderInput carries an order creation request.
type CreateOrderInput struct {
	ClientID       int64       `json:"clientId"`
	SiteID         *int64      `json:"siteId,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	Lines          []LineInput `json:"lines"`
	IdempotencyKey string      `json:"idempotencyKey,omitempty"`
}

// ListOrdersInput holds the optional list filters.
type ListOrdersInput struct {
	UserID   *int64
	ClientID *int64
	Status   *string
}

// UpdateStatusInput requests an explicit status transition.
type UpdateStatusInput struct {
	OrderID string
	Status  string
}
