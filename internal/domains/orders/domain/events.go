package domain

import "time"

const (
	// StockCommitStatusExecuted is the status carried by every stock commit.
	StockCommitStatusExecuted = "EXECUTED"
	// StockReturnReasonCancelled explains a compensating restock.
	StockReturnReasonCancelled = "order cancelled"
)

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"occurredAt"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// Item is a product/quantity pair carried by stock events.
type Item struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// StockCommit asks the catalog to decrement stock for an admitted order.
type StockCommit struct {
	BaseEvent
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Items   []Item `json:"items"`
}

// EventName returns the event type identifier.
func (e StockCommit) EventName() string {
	return "orders.stock.commit"
}

// NewStockCommit builds the commit event for a persisted order.
func NewStockCommit(eventID string, order *Order, at time.Time) StockCommit {
	return StockCommit{
		BaseEvent: BaseEvent{EventID: eventID, Timestamp: at},
		OrderID:   order.ID,
		Status:    StockCommitStatusExecuted,
		Items:     order.Items(),
	}
}

// StockReturn asks the catalog to restore stock committed for a cancelled order.
type StockReturn struct {
	BaseEvent
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Reason      string `json:"reason"`
	Items       []Item `json:"items"`
}

// EventName returns the event type identifier.
func (e StockReturn) EventName() string {
	return "orders.stock.return"
}

// NewStockReturn builds the compensation event for a cancelled order.
func NewStockReturn(eventID string, order *Order, at time.Time) StockReturn {
	return StockReturn{
		BaseEvent:   BaseEvent{EventID: eventID, Timestamp: at},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reason:      StockReturnReasonCancelled,
		Items:       order.Items(),
	}
}
