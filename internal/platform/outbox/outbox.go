package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is an event waiting to be relayed to the broker.
type Record struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

// Store keeps unsent events in the event_outbox table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Insert stores payload as JSON. A repeated event id is ignored.
func (s *Store) Insert(ctx context.Context, eventID, topic, key string, payload any) error {
	if err := s.ensurePool(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO event_outbox(event_id, topic, key, payload, created_at) VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, topic, key, data)
	return err
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	if err := s.ensurePool(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `UPDATE event_outbox SET sent_at = now() WHERE id = $1`, id)
	return err
}

// FetchPending returns unsent events oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	if err := s.ensurePool(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, topic, key, payload, created_at, sent_at FROM event_outbox
		 WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ensurePool() error {
	if s == nil || s.pool == nil {
		return errors.New("outbox store not configured")
	}
	return nil
}
