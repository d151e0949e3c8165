package outbox

import (
	"context"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

const eventIDHeader = "event-id"

// Source yields pending records and acknowledges relayed ones.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

// Sender writes a message to a topic.
type Sender interface {
	Send(ctx context.Context, topic string, msg kafka.Message) error
}

// Relay republishes outbox records. Records that fail to send stay pending for the next run.
type Relay struct {
	source Source
	sender Sender
	logger *slog.Logger
}

func NewRelay(source Source, sender Sender, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Relay{source: source, sender: sender, logger: logger}
}

// RunOnce relays up to limit records and reports how many were sent.
func (r *Relay) RunOnce(ctx context.Context, limit int) (int, error) {
	records, err := r.source.FetchPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range records {
		msg := kafka.Message{
			Key:     []byte(rec.Key),
			Value:   rec.Payload,
			Headers: []kafka.Header{{Key: eventIDHeader, Value: []byte(rec.EventID)}},
		}
		if err := r.sender.Send(ctx, rec.Topic, msg); err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "outbox relay send failed",
				slog.Int64("outbox.id", rec.ID), slog.String("event.id", rec.EventID), slog.String("error", err.Error()))
			continue
		}
		if err := r.source.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
