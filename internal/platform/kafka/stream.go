// Package kafka adapts Kafka topics and consumer groups to the stream.Stream
// interface.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// EventIDHeader carries the id assigned to an event at append time.
const EventIDHeader = "event-id"

// minPoll bounds a non-blocking read; FetchMessage has no zero-wait mode.
const minPoll = 10 * time.Millisecond

type readerKey struct {
	topic, group, consumer string
}

type fetched struct {
	msg stream.Message
	raw kafkago.Message
}

// groupReader is one consumer-group member plus the messages it fetched but
// has not committed yet.
type groupReader struct {
	consumer Consumer

	mu      sync.Mutex
	pending []fetched
}

// Stream implements stream.Stream on Kafka. Offsets are committed on Ack;
// Kafka commits are cumulative per partition, so acknowledging a later
// message also commits earlier ones on the same partition.
type Stream struct {
	producer  Producer
	newReader ReaderFactory

	mu      sync.Mutex
	readers map[readerKey]*groupReader
}

// NewStream builds a stream publishing through producer and reading through
// readers opened by newReader.
func NewStream(producer Producer, newReader ReaderFactory) *Stream {
	return &Stream{
		producer:  producer,
		newReader: newReader,
		readers:   make(map[readerKey]*groupReader),
	}
}

func (s *Stream) Append(ctx context.Context, topic string, fields map[string]string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate event id: %w", err)
	}
	value, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(fields[domain.FieldOrderID]),
		Value: value,
		Headers: []kafkago.Header{
			{Key: EventIDHeader, Value: []byte(id.String())},
		},
	}
	if err := s.producer.WriteMessage(ctx, msg); err != nil {
		return "", fmt.Errorf("write to %s: %w", topic, err)
	}
	return id.String(), nil
}

// EnsureGroup is a no-op: Kafka creates the group when its first member
// joins, which happens on the first Read.
func (s *Stream) EnsureGroup(ctx context.Context, topic, group string) error {
	return ctx.Err()
}

func (s *Stream) reader(topic, group, consumer string) *groupReader {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := readerKey{topic: topic, group: group, consumer: consumer}
	r, ok := s.readers[key]
	if !ok {
		r = &groupReader{consumer: s.newReader(topic, group, consumer)}
		s.readers[key] = r
	}
	return r
}

func (s *Stream) Read(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]stream.Message, error) {
	if count <= 0 {
		count = 1
	}
	r := s.reader(topic, group, consumer)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) > 0 {
		n := min(count, len(r.pending))
		out := make([]stream.Message, 0, n)
		for _, f := range r.pending[:n] {
			out = append(out, copyMessage(f.msg))
		}
		return out, nil
	}

	if block < minPoll {
		block = minPoll
	}
	fetchCtx, cancel := context.WithTimeout(ctx, block)
	defer cancel()

	raw, err := r.consumer.FetchMessage(fetchCtx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch from %s: %w", topic, err)
	}

	msg := decode(topic, raw)
	r.pending = append(r.pending, fetched{msg: msg, raw: raw})
	return []stream.Message{copyMessage(msg)}, nil
}

func (s *Stream) Ack(ctx context.Context, topic, group, id string) error {
	s.mu.Lock()
	var members []*groupReader
	for key, r := range s.readers {
		if key.topic == topic && key.group == group {
			members = append(members, r)
		}
	}
	s.mu.Unlock()

	for _, r := range members {
		done, err := r.ack(ctx, id)
		if err != nil {
			return fmt.Errorf("commit %s on %s: %w", id, topic, err)
		}
		if done {
			return nil
		}
	}
	return nil
}

func (r *groupReader) ack(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, f := range r.pending {
		if f.msg.ID != id {
			continue
		}
		if err := r.consumer.CommitMessages(ctx, f.raw); err != nil {
			return false, err
		}
		r.pending = append(r.pending[:i], r.pending[i+1:]...)
		return true, nil
	}
	return false, nil
}

// Close closes every reader and the producer.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, r := range s.readers {
		err = errors.Join(err, r.consumer.Close())
		delete(s.readers, key)
	}
	if s.producer != nil {
		err = errors.Join(err, s.producer.Close())
	}
	return err
}

// decode turns a Kafka message into a stream entry. Headers other than the
// event id (trace context, typically) are exposed as fields unless the value
// already defines them. A value that is not a JSON object yields empty fields
// so the handler can reject it.
func decode(topic string, raw kafkago.Message) stream.Message {
	fields := make(map[string]string)
	_ = json.Unmarshal(raw.Value, &fields)

	id := ""
	for _, h := range raw.Headers {
		if h.Key == EventIDHeader {
			id = string(h.Value)
			continue
		}
		if _, ok := fields[h.Key]; !ok {
			fields[h.Key] = string(h.Value)
		}
	}
	if id == "" {
		id = fmt.Sprintf("%d-%d", raw.Partition, raw.Offset)
	}
	return stream.Message{ID: id, Topic: topic, Fields: fields}
}

func copyMessage(msg stream.Message) stream.Message {
	msg.Fields = maps.Clone(msg.Fields)
	return msg
}

var _ stream.Stream = (*Stream)(nil)
