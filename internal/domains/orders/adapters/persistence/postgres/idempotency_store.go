package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore persists Idempotency-Key bindings in PostgreSQL.
type IdempotencyStore struct {
	db     *gorm.DB
	expiry time.Duration
}

func NewIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{db: db, expiry: ports.DefaultReservationExpiry}
}

// Reserve inserts a pending record for the key. A taken key is only reclaimed when its
// reservation was never bound and has expired.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, requestHash string) (*ports.IdempotencyRecord, bool, error) {
	if err := s.ensureDB(); err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	dbRecord := idempotencyRecord{Key: key, RequestHash: requestHash, CreatedAt: now, UpdatedAt: now}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"request_hash": requestHash,
				"order_id":     "",
				"created_at":   now,
				"updated_at":   now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{
					SQL:  "order_idempotency_keys.order_id = '' AND order_idempotency_keys.updated_at < ?",
					Vars: []any{now.Add(-s.expiry)},
				},
			}},
		}).
		Create(&dbRecord)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return dbRecord.toPort(), true, nil
	}

	existing, err := s.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.New("idempotency key vanished after conflict")
	}
	return existing, false, nil
}

// Bind records the order created under a reservation.
func (s *IdempotencyStore) Bind(ctx context.Context, key, orderID string) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&idempotencyRecord{}).
		Where("key = ? AND (order_id = '' OR order_id = ?)", key, orderID).
		Updates(map[string]any{"order_id": orderID, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}
	existing, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("idempotency key %q is not reserved", key)
	}
	return ports.ErrIdempotencyConflict
}

// Release deletes the key while it is still unbound.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("key = ? AND order_id = ''", key).
		Delete(&idempotencyRecord{}).Error
}

func (s *IdempotencyStore) get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	var record idempotencyRecord
	if err := s.db.WithContext(ctx).First(&record, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record.toPort(), nil
}

func (s *IdempotencyStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres idempotency store not configured")
	}
	return nil
}

type idempotencyRecord struct {
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash string    `gorm:"column:request_hash;size:128"`
	OrderID     string    `gorm:"column:order_id;type:varchar(36)"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (idempotencyRecord) TableName() string { return "order_idempotency_keys" }

func (r *idempotencyRecord) toPort() *ports.IdempotencyRecord {
	return &ports.IdempotencyRecord{
		Key:         r.Key,
		RequestHash: r.RequestHash,
		OrderID:     r.OrderID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
