package postgres

import (
	"encoding/json"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
)

func toRecord(order *domain.Order) orderRecord {
	rec := orderRecord{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		ClientID:    order.ClientID,
		Notes:       order.Notes,
		Lines:       make([]lineRecord, 0, len(order.Lines)),
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		Version:     order.Version,
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt,
	}
	if order.SiteID != nil {
		site := *order.SiteID
		rec.SiteID = &site
	}
	for _, line := range order.Lines {
		rec.Lines = append(rec.Lines, lineRecord{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			LineAmount: line.LineAmount,
		})
	}
	return rec
}

func (r orderRecord) toDomain() *domain.Order {
	order := &domain.Order{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ClientID:    r.ClientID,
		SiteID:      r.SiteID,
		Notes:       r.Notes,
		TotalAmount: r.TotalAmount,
		Status:      domain.Status(r.Status),
		Version:     r.Version,
	}
	for _, line := range r.Lines {
		order.Lines = append(order.Lines, domain.Line{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			LineAmount: line.LineAmount,
		})
	}
	return order
}

// linesJSON encodes lines for map-based updates, which bypass the field serializer.
func linesJSON(lines []lineRecord) (string, error) {
	raw, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
