// Package consumer runs the at-least-once event loop shared by every saga
// participant: read one event, hand it to a handler, acknowledge unless the
// handler asked for a retry.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/consumer"

// Handler processes one event. A nil error acknowledges the event. An error
// wrapped with domain.Permanent also acknowledges it (the event can never
// succeed). Any other error leaves the event pending for redelivery.
type Handler interface {
	Handle(ctx context.Context, msg stream.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg stream.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg stream.Message) error {
	return f(ctx, msg)
}

// Outcome classifies a handler result.
type Outcome string

const (
	OutcomeHandled  Outcome = "handled"
	OutcomeRejected Outcome = "rejected"
	OutcomeRetry    Outcome = "retry"
)

// Classify maps a handler error to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeHandled
	case domain.IsPermanent(err):
		return OutcomeRejected
	default:
		return OutcomeRetry
	}
}

// Config identifies the subscription and tunes the loop.
type Config struct {
	Topic    string
	Group    string
	Consumer string

	// BlockTimeout bounds each read and therefore shutdown latency.
	BlockTimeout time.Duration
	// Backoff is the pause after a stream failure. When MaxBackoff is
	// larger, pauses grow exponentially up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// RetryDelay is the pause after a handler failure, before the same
	// pending event is read again.
	RetryDelay time.Duration
	// ReclaimIdle enables claiming events other consumers left pending for
	// at least this long. Zero disables it.
	ReclaimIdle time.Duration
}

const (
	defaultBlockTimeout = time.Second
	defaultBackoff      = 5 * time.Second
)

// Loop consumes one (topic, group, consumer) subscription.
type Loop struct {
	stream  stream.Stream
	handler Handler
	cfg     Config
	logger  observability.Logger
	tracer  observability.Tracer

	events   metric.Int64Counter
	duration metric.Float64Histogram
	attrs    []attribute.KeyValue
}

// New builds a loop. A nil tracer or meter falls back to the global
// providers.
func New(s stream.Stream, handler Handler, cfg Config, logger observability.Logger, tracer observability.Tracer, meter metric.Meter) (*Loop, error) {
	if s == nil || handler == nil || logger == nil {
		return nil, errors.New("consumer: stream, handler and logger are required")
	}
	if cfg.Topic == "" || cfg.Group == "" || cfg.Consumer == "" {
		return nil, errors.New("consumer: topic, group and consumer names are required")
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = defaultBlockTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	events, err := meter.Int64Counter("saga.consumer.events",
		metric.WithDescription("Events processed by saga consumers, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	duration, err := meter.Float64Histogram("saga.consumer.handle.duration",
		metric.WithDescription("Handler latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Loop{
		stream:   s,
		handler:  handler,
		cfg:      cfg,
		logger:   logger.With(zap.String("topic", cfg.Topic), zap.String("group", cfg.Group), zap.String("consumer", cfg.Consumer)),
		tracer:   tracer,
		events:   events,
		duration: duration,
		attrs: []attribute.KeyValue{
			attribute.String("messaging.destination.name", cfg.Topic),
			attribute.String("messaging.consumer.group.name", cfg.Group),
		},
	}, nil
}

func (l *Loop) newBackOff() backoff.BackOff {
	if l.cfg.MaxBackoff <= l.cfg.Backoff {
		return backoff.NewConstantBackOff(l.cfg.Backoff)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.Backoff
	b.MaxInterval = l.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run consumes until ctx is cancelled and then returns nil. Stream failures
// never end the loop; they are logged and retried after a backoff.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Consumer started. Waiting for events...")
	bo := l.newBackOff()

	for ctx.Err() == nil {
		if err := l.stream.EnsureGroup(ctx, l.cfg.Topic, l.cfg.Group); err != nil {
			if ctx.Err() != nil {
				break
			}
			l.logger.Error("❌ Failed to ensure consumer group", zap.Error(err))
			l.pause(ctx, bo.NextBackOff())
			continue
		}

		err := l.consume(ctx, bo)
		if err == nil || ctx.Err() != nil {
			break
		}
		wait := bo.NextBackOff()
		l.logger.Error("❌ Stream error, backing off", zap.Error(err), zap.Duration("backoff", wait))
		l.pause(ctx, wait)
	}

	l.logger.Info("Consumer finished")
	return nil
}

// consume processes events until ctx is done (nil) or the stream fails.
func (l *Loop) consume(ctx context.Context, bo backoff.BackOff) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := l.stream.Read(ctx, l.cfg.Topic, l.cfg.Group, l.cfg.Consumer, 1, l.cfg.BlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		bo.Reset()
		if len(msgs) == 0 {
			msgs = l.reclaim(ctx)
		}

		for _, msg := range msgs {
			if err := l.process(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) reclaim(ctx context.Context) []stream.Message {
	if l.cfg.ReclaimIdle <= 0 {
		return nil
	}
	r, ok := l.stream.(stream.Reclaimer)
	if !ok {
		return nil
	}
	msgs, err := r.Reclaim(ctx, l.cfg.Topic, l.cfg.Group, l.cfg.Consumer, l.cfg.ReclaimIdle, 1)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("Failed to reclaim idle events", zap.Error(err))
		}
		return nil
	}
	for _, msg := range msgs {
		l.logger.Info("Reclaimed idle event", zap.String("event_id", msg.ID))
	}
	return msgs
}

// process runs the handler for msg and acknowledges it unless the handler
// asked for a retry. Only an acknowledgement failure is returned.
func (l *Loop) process(ctx context.Context, msg stream.Message) error {
	msgCtx := observability.ExtractFields(ctx, msg.Fields)
	msgCtx, span := l.tracer.Start(msgCtx, "consume "+l.cfg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(append(l.attrs, attribute.String("messaging.message.id", msg.ID))...),
	)
	defer span.End()

	log := l.logger.With(zap.String("event_id", msg.ID))
	log.Debug("📨 Event received")

	start := time.Now()
	err := l.handle(msgCtx, msg)
	outcome := Classify(err)

	attrs := metric.WithAttributes(append(l.attrs, attribute.String("outcome", string(outcome)))...)
	l.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	l.events.Add(ctx, 1, attrs)
	span.SetAttributes(attribute.String("saga.outcome", string(outcome)))

	switch outcome {
	case OutcomeHandled:
		span.SetStatus(codes.Ok, "handled")
		log.Debug("✅ Event handled")
	case OutcomeRejected:
		span.SetStatus(codes.Ok, "rejected")
		log.Warn("Rejected event, acknowledging without effect", zap.Error(err), zap.Any("fields", msg.Fields))
	case OutcomeRetry:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("❌ Handler failed, event left pending", zap.Error(err))
		l.pause(ctx, l.cfg.RetryDelay)
		return nil
	}

	if err := l.stream.Ack(ctx, l.cfg.Topic, l.cfg.Group, msg.ID); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ack %s: %w", msg.ID, err)
	}
	return nil
}

func (l *Loop) handle(ctx context.Context, msg stream.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return l.handler.Handle(ctx, msg)
}

func (l *Loop) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
