package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order progression.
type Status string

const (
	StatusReceived      Status = "RECEIVED"
	StatusRejected      Status = "REJECTED"
	StatusAccepted      Status = "ACCEPTED"
	StatusInPreparation Status = "IN_PREPARATION"
	StatusDelivered     Status = "DELIVERED"
	StatusCancelled     Status = "CANCELLED"

	// Reserved values. They are accepted by ParseStatus but no transition reaches them.
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
)

const (
	orderNumberPrefix = "PED-"
	orderNumberLayout = "20060102150405"
)

var (
	ErrInvalidClientID   = errors.New("client id must be greater than zero")
	ErrInvalidProductID  = errors.New("product id must be greater than zero")
	ErrInvalidQuantity   = errors.New("quantity must be at least one")
	ErrInvalidUnitPrice  = errors.New("unit price must not be negative")
	ErrNoLines           = errors.New("order must contain at least one line")
	ErrTotalMismatch     = errors.New("order total does not match its lines")
	ErrInvalidStatus     = errors.New("order status is invalid")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// transitions lists the explicit status changes callers may request.
var transitions = map[Status][]Status{
	StatusAccepted:      {StatusCancelled},
	StatusInPreparation: {StatusDelivered, StatusCancelled},
}

// Line is a priced order line. Amounts come from the catalog, never from the request.
type Line struct {
	ProductID  int64
	Quantity   int
	UnitPrice  decimal.Decimal
	LineAmount decimal.Decimal
}

// NewLine prices a line at the given unit price.
func NewLine(productID int64, quantity int, unitPrice decimal.Decimal) (Line, error) {
	if productID <= 0 {
		return Line{}, ErrInvalidProductID
	}
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return Line{}, ErrInvalidUnitPrice
	}
	return Line{
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		LineAmount: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Order models the order ledger aggregate.
type Order struct {
	ID          string
	OrderNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClientID    int64
	SiteID      *int64
	Notes       string
	Lines       []Line
	TotalAmount decimal.Decimal
	Status      Status
	Version     int64
}

// NewOrder starts an order in the RECEIVED state with no lines.
func NewOrder(clientID int64, siteID *int64, notes string, createdAt time.Time) (*Order, error) {
	if clientID <= 0 {
		return nil, ErrInvalidClientID
	}
	order := &Order{
		OrderNumber: NewOrderNumber(createdAt),
		CreatedAt:   createdAt,
		ClientID:    clientID,
		Notes:       notes,
		TotalAmount: decimal.Zero,
		Status:      StatusReceived,
	}
	if siteID != nil {
		site := *siteID
		order.SiteID = &site
	}
	return order, nil
}

// NewOrderNumber renders the display label for an order created at t.
// Two orders created within the same second share a number.
func NewOrderNumber(t time.Time) string {
	return orderNumberPrefix + t.Format(orderNumberLayout)
}

// AddLine appends a priced line and keeps the total in step with the lines.
func (o *Order) AddLine(line Line) {
	o.Lines = append(o.Lines, line)
	o.TotalAmount = o.TotalAmount.Add(line.LineAmount)
}

// Items returns the product/quantity pairs carried by stock events.
func (o *Order) Items() []Item {
	items := make([]Item, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, Item{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return items
}

// Reject marks an intake attempt as a business rejection.
func (o *Order) Reject() {
	o.Status = StatusRejected
}

// Park leaves the order in RECEIVED because a collaborator could not answer.
func (o *Order) Park() {
	o.Status = StatusReceived
}

// Accept admits the order. Orders without lines cannot be admitted.
func (o *Order) Accept() error {
	if len(o.Lines) == 0 {
		return ErrNoLines
	}
	o.Status = StatusAccepted
	return nil
}

// StartPreparation records that stock was committed for an accepted order.
func (o *Order) StartPreparation() error {
	if o.Status != StatusAccepted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusInPreparation)
	}
	o.Status = StatusInPreparation
	return nil
}

// TransitionTo applies a caller-requested status change. Disallowed changes leave the order untouched.
func (o *Order) TransitionTo(next Status) error {
	if !isValidStatus(next) {
		return ErrInvalidStatus
	}
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	return nil
}

// CanTransition reports whether a caller may move an order from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Validate enforces invariants on the aggregate.
func (o *Order) Validate() error {
	if o.ClientID <= 0 {
		return ErrInvalidClientID
	}
	if !isValidStatus(o.Status) {
		return ErrInvalidStatus
	}
	total := decimal.Zero
	for _, line := range o.Lines {
		if line.ProductID <= 0 {
			return ErrInvalidProductID
		}
		if line.Quantity < 1 {
			return ErrInvalidQuantity
		}
		total = total.Add(line.LineAmount)
	}
	if !total.Equal(o.TotalAmount) {
		return ErrTotalMismatch
	}
	if len(o.Lines) == 0 && o.Status != StatusReceived && o.Status != StatusRejected {
		return ErrNoLines
	}
	return nil
}

// Clone returns a deep copy so callers never share line slices.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.SiteID != nil {
		site := *o.SiteID
		clone.SiteID = &site
	}
	if o.Lines != nil {
		clone.Lines = append([]Line(nil), o.Lines...)
	}
	return &clone
}

// ParseStatus converts a raw value into a known status.
func ParseStatus(raw string) (Status, error) {
	status := Status(raw)
	if !isValidStatus(status) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// CommittedStatuses are the statuses whose totals count against a client's credit ceiling.
func CommittedStatuses() []Status {
	return []Status{StatusAccepted, StatusInPreparation}
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusReceived, StatusRejected, StatusAccepted, StatusInPreparation,
		StatusDelivered, StatusCancelled, StatusConfirmed, StatusShipped:
		return true
	default:
		return false
	}
}
