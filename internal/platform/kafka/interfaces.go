package kafka

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

// Producer defines the interface for publishing messages.
// *otelkafka.Writer satisfies it.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafkago.Message) error
	Close() error
}

// Consumer defines the interface for consuming messages with explicit
// commits. *kafkago.Reader satisfies it.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ReaderFactory opens the consumer-group member used by one named consumer.
type ReaderFactory func(topic, group, consumer string) Consumer
