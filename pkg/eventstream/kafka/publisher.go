// Package kafka publishes collection events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/kbase/pkg/eventstream"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "kbase.collections"

// Config holds the Kafka publisher settings.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events as JSON messages keyed by collection id, so every
// event for one collection lands on the same partition in order.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// Ensure Publisher implements eventstream.Publisher.
var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka publisher. Connections are made lazily on the
// first write.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}

	logger.Info("kafka event publisher configured", "brokers", c.Brokers, "topic", topic)

	return newPublisher(w, topic, c.WriteTimeout, logger), nil
}

func newPublisher(w messageWriter, topic string, timeout time.Duration, logger *slog.Logger) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{writer: w, topic: topic, timeout: timeout, logger: logger}
}

// Publish writes one event.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.CollectionEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Collection),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", event.EventType, p.topic, err)
	}

	p.logger.Debug("published event",
		"topic", p.topic,
		"event_type", event.EventType,
		"collection", event.Collection,
	)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
