package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists the order ledger in PostgreSQL using GORM.
// Updates are guarded by the version column.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle and schema.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

type orderRecord struct {
	ID          string          `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrderNumber string          `gorm:"column:order_number;type:varchar(32);index"`
	ClientID    int64           `gorm:"column:client_id;index:idx_orders_client_status"`
	SiteID      *int64          `gorm:"column:site_id"`
	Notes       string          `gorm:"column:notes"`
	Lines       []lineRecord    `gorm:"column:lines;type:jsonb;serializer:json"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric"`
	Status      string          `gorm:"column:status;type:varchar(32);index:idx_orders_client_status"`
	Version     int64           `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time       `gorm:"column:created_at;index"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

type lineRecord struct {
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	LineAmount decimal.Decimal `json:"lineAmount"`
}

// Save inserts new orders and updates existing ones when their version is current.
func (r *Repository) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	record := toRecord(order)
	record.UpdatedAt = r.now().UTC()

	if record.ID == "" {
		record.ID = uuid.NewString()
		record.Version = 1
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			return nil, err
		}
		return record.toDomain(), nil
	}

	lines, err := linesJSON(record.Lines)
	if err != nil {
		return nil, err
	}
	result := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]any{
			"site_id":      record.SiteID,
			"notes":        record.Notes,
			"lines":        gorm.Expr("?::jsonb", lines),
			"total_amount": record.TotalAmount,
			"status":       record.Status,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   record.UpdatedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, record.ID); err != nil {
			return nil, err
		}
		return nil, ports.ErrConcurrentUpdate
	}
	return r.GetByID(ctx, record.ID)
}

// GetByID fetches an order by identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// Delete removes an order by identifier.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Delete(&orderRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// List returns all orders oldest first.
func (r *Repository) List(ctx context.Context) ([]*domain.Order, error) {
	return r.Find(ctx, ports.OrderFilter{})
}

// Find returns orders matching the filter oldest first.
func (r *Repository) Find(ctx context.Context, filter ports.OrderFilter) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Order("created_at, id")
	if len(filter.ClientIDs) > 0 {
		query = query.Where("client_id = ANY(?)", pq.Array(filter.ClientIDs))
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", lo.Map(filter.Statuses, func(s domain.Status, _ int) string { return string(s) }))
	}
	var records []orderRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain())
	}
	return orders, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}
