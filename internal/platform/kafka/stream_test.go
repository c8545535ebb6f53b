package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
	closed   bool
}

func (p *fakeProducer) WriteMessage(_ context.Context, msg kafkago.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

type fakeConsumer struct {
	incoming  chan kafkago.Message
	mu        sync.Mutex
	committed []kafkago.Message
	closed    bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{incoming: make(chan kafkago.Message, 16)}
}

func (c *fakeConsumer) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	case msg := <-c.incoming:
		return msg, nil
	}
}

func (c *fakeConsumer) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, msgs...)
	return nil
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func newTestStream() (*Stream, *fakeProducer, *fakeConsumer) {
	producer := &fakeProducer{}
	consumer := newFakeConsumer()
	s := NewStream(producer, func(topic, group, name string) Consumer { return consumer })
	return s, producer, consumer
}

func TestAppendEncodesFieldsAndEventID(t *testing.T) {
	s, producer, _ := newTestStream()

	id, err := s.Append(context.Background(), "order_placed", map[string]string{"order_id": "o-1", "quantity": "3"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(producer.messages) != 1 {
		t.Fatalf("messages written = %d, want 1", len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.Topic != "order_placed" || string(msg.Key) != "o-1" {
		t.Fatalf("topic/key = %q/%q", msg.Topic, msg.Key)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != EventIDHeader || string(msg.Headers[0].Value) != id {
		t.Fatalf("headers = %+v, want event id %s", msg.Headers, id)
	}
	var fields map[string]string
	if err := json.Unmarshal(msg.Value, &fields); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if fields["quantity"] != "3" {
		t.Fatalf("fields = %v", fields)
	}

	next, _ := s.Append(context.Background(), "order_placed", map[string]string{})
	if next <= id {
		t.Fatalf("ids not increasing: %s then %s", id, next)
	}
}

func TestAppendFailure(t *testing.T) {
	s, producer, _ := newTestStream()
	producer.err = errors.New("broker down")

	if _, err := s.Append(context.Background(), "order_placed", map[string]string{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadRedeliversUntilAckCommits(t *testing.T) {
	ctx := context.Background()
	s, _, consumer := newTestStream()

	consumer.incoming <- kafkago.Message{
		Topic:   "order_placed",
		Offset:  7,
		Value:   []byte(`{"order_id":"o-1"}`),
		Headers: []kafkago.Header{{Key: EventIDHeader, Value: []byte("evt-1")}, {Key: "traceparent", Value: []byte("00-abc")}},
	}

	msgs, err := s.Read(ctx, "order_placed", "g", "c1", 1, time.Second)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("read = %+v, %v", msgs, err)
	}
	if msgs[0].ID != "evt-1" || msgs[0].Fields["order_id"] != "o-1" || msgs[0].Fields["traceparent"] != "00-abc" {
		t.Fatalf("decoded message = %+v", msgs[0])
	}

	again, err := s.Read(ctx, "order_placed", "g", "c1", 1, time.Second)
	if err != nil || len(again) != 1 || again[0].ID != "evt-1" {
		t.Fatalf("pending message not redelivered: %+v, %v", again, err)
	}

	if err := s.Ack(ctx, "order_placed", "g", "evt-1"); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := s.Ack(ctx, "order_placed", "g", "evt-1"); err != nil {
		t.Fatalf("double ack: %v", err)
	}
	if len(consumer.committed) != 1 || consumer.committed[0].Offset != 7 {
		t.Fatalf("committed = %+v, want offset 7 once", consumer.committed)
	}

	empty, err := s.Read(ctx, "order_placed", "g", "c1", 1, 20*time.Millisecond)
	if err != nil || len(empty) != 0 {
		t.Fatalf("read after ack = %+v, %v; want empty", empty, err)
	}
}

func TestReadMalformedValueYieldsEmptyFields(t *testing.T) {
	s, _, consumer := newTestStream()
	consumer.incoming <- kafkago.Message{Partition: 2, Offset: 9, Value: []byte("not json")}

	msgs, err := s.Read(context.Background(), "order_placed", "g", "c1", 1, time.Second)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("read = %+v, %v", msgs, err)
	}
	if msgs[0].ID != "2-9" || len(msgs[0].Fields) != 0 {
		t.Fatalf("message = %+v", msgs[0])
	}
}

func TestReadCancelled(t *testing.T) {
	s, _, _ := newTestStream()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Read(ctx, "order_placed", "g", "c1", 1, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCloseClosesReadersAndProducer(t *testing.T) {
	s, producer, consumer := newTestStream()
	_, _ = s.Read(context.Background(), "order_placed", "g", "c1", 1, 0)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !producer.closed || !consumer.closed {
		t.Fatal("expected producer and consumer closed")
	}
}
