package migrations

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the ledger schema. Adapters do not automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&orderRecord{},
		&idempotencyRecord{},
		&outboxRecord{},
	)
}

// Order schema mirrors the orders Postgres adapter. Lines are stored as a JSON document.
type orderRecord struct {
	ID          string          `gorm:"primaryKey;column:id;type:varchar(36)"`
	OrderNumber string          `gorm:"column:order_number;type:varchar(32);index"`
	ClientID    int64           `gorm:"column:client_id;index:idx_orders_client_status"`
	SiteID      *int64          `gorm:"column:site_id"`
	Notes       string          `gorm:"column:notes"`
	Lines       []byte          `gorm:"column:lines;type:jsonb"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric"`
	Status      string          `gorm:"column:status;type:varchar(32);index:idx_orders_client_status"`
	Version     int64           `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time       `gorm:"column:created_at;index"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

// Idempotency schema mirrors the orders idempotency store.
type idempotencyRecord struct {
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash string    `gorm:"column:request_hash;size:128"`
	OrderID     string    `gorm:"column:order_id;type:varchar(36)"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (idempotencyRecord) TableName() string { return "order_idempotency_keys" }

// Outbox schema backs the pgx outbox store.
type outboxRecord struct {
	ID        int64      `gorm:"primaryKey;autoIncrement;column:id"`
	EventID   string     `gorm:"column:event_id;size:64;uniqueIndex"`
	Topic     string     `gorm:"column:topic;size:255;not null"`
	Key       string     `gorm:"column:key;size:255"`
	Payload   []byte     `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;default:now()"`
	SentAt    *time.Time `gorm:"column:sent_at;index"`
}

func (outboxRecord) TableName() string { return "event_outbox" }
