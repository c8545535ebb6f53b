package kafka

import (
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// NewWriter builds the traced producer for every saga topic. Messages carry
// their own topic.
func NewWriter(cfg *config.Config, tp trace.TracerProvider) (Producer, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	baseWriter := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           config.KafkaBatchTimeout,
		BatchSize:              config.KafkaBatchSize,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingSystemKafka,
				attribute.String("messaging.kafka.client_id", cfg.ServiceName),
			},
		),
	)
	if err != nil {
		return nil, err
	}
	return writer, nil
}

// NewReaderFactory returns a factory of group readers on cfg's brokers. A
// group without committed offsets starts at the end of the topic.
func NewReaderFactory(cfg *config.Config) ReaderFactory {
	brokers := append([]string(nil), cfg.KafkaBrokers...)
	return func(topic, group, consumer string) Consumer {
		return kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     group,
			StartOffset: kafkago.LastOffset,
			MaxWait:     500 * time.Millisecond,
		})
	}
}
