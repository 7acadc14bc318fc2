package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

const (
	eventTypeGridIngested = "grid_ingested"

	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier publishes grid completion events to a Kafka topic.
// It implements ingest.CompletionNotifier.
type Notifier struct {
	writer messageWriter
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the completion topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// NotifyCompletion publishes c, retrying transient failures with backoff.
func (n *Notifier) NotifyCompletion(ctx context.Context, c domain.Completion) error {
	msg, err := serializeToMessage(c)
	if err != nil {
		return err
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err = n.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("publish completion after %d attempts: %w", attempt, err)
		}
		n.logger.Warn("publish completion failed, retrying",
			"error", err,
			"attempt", attempt,
			"backoff", backoff,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a Completion into a Kafka message keyed by
// source so events of one model stay ordered.
func serializeToMessage(c domain.Completion) (kafkago.Message, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize completion: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(c.Source),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventTypeGridIngested)},
			{Key: "processed_at", Value: []byte(c.CompletedAt.Format(time.RFC3339))},
			{Key: "batch_id", Value: []byte(c.BatchID)},
		},
	}, nil
}
