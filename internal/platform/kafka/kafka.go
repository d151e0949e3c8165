package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrDisabled is returned when no brokers are configured.
var ErrDisabled = errors.New("kafka disabled")

// Producer writes messages to a single topic.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Client holds broker settings shared by every writer.
type Client struct {
	Brokers  []string
	ClientID string
}

// NewClient parses a comma separated broker list. Blank entries are dropped.
func NewClient(brokersCSV, clientID string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers, ClientID: clientID}
}

func (c *Client) Enabled() bool {
	return c != nil && len(c.Brokers) > 0
}

// NewWriter builds a plain writer keyed by message key so one order stays on one partition.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewTracedWriter wraps NewWriter so trace context travels in message headers.
func (c *Client) NewTracedWriter(topic string, tp trace.TracerProvider) (Producer, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	attrs := []attribute.KeyValue{semconv.MessagingDestinationNameKey.String(topic)}
	if c.ClientID != "" {
		attrs = append(attrs, attribute.String("messaging.kafka.client_id", c.ClientID))
	}
	writer, err := otelkafka.NewWriter(c.NewWriter(topic),
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(attrs),
	)
	if err != nil {
		return nil, err
	}
	return writer, nil
}

// Producers routes messages to one writer per topic, created on first use.
type Producers struct {
	mu      sync.Mutex
	newFn   func(topic string) (Producer, error)
	writers map[string]Producer
}

// NewProducers builds traced writers lazily from the client.
func (c *Client) NewProducers(tp trace.TracerProvider) *Producers {
	return NewProducersWith(func(topic string) (Producer, error) {
		return c.NewTracedWriter(topic, tp)
	})
}

// NewProducersWith uses a custom writer factory.
func NewProducersWith(newFn func(topic string) (Producer, error)) *Producers {
	return &Producers{newFn: newFn, writers: map[string]Producer{}}
}

// Send writes msg to topic. The message's own Topic field is ignored.
func (p *Producers) Send(ctx context.Context, topic string, msg kafka.Message) error {
	writer, err := p.writer(topic)
	if err != nil {
		return err
	}
	msg.Topic = ""
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	if err := writer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	return nil
}

func (p *Producers) writer(topic string) (Producer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}
	w, err := p.newFn(topic)
	if err != nil {
		return nil, fmt.Errorf("create writer for %s: %w", topic, err)
	}
	p.writers[topic] = w
	return w, nil
}

// Close closes every writer created so far.
func (p *Producers) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for %s: %w", topic, err))
		}
		delete(p.writers, topic)
	}
	return errors.Join(errs...)
}
