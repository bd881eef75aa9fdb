package kafka

import (
	"context"
	"log/slog"
	"sync"

	kafkago "github.com/segmentio/kafka-go"
)

// RecordingWriter captures messages instead of sending them.
type RecordingWriter struct {
	mu       sync.Mutex
	Messages []kafkago.Message
	Err      error
	Closed   bool
}

func (w *RecordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *RecordingWriter) Close() error {
	w.Closed = true
	return nil
}

func NewPublisherWithWriter(w *RecordingWriter, topic string, logger *slog.Logger) *Publisher {
	return newPublisher(w, topic, 0, logger)
}
