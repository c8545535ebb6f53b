package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStream(client)
}

func TestStreamGroupLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)

	if err := s.EnsureGroup(ctx, "order_placed", "inventory-group"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := s.EnsureGroup(ctx, "order_placed", "inventory-group"); err != nil {
		t.Fatalf("ensure group should be idempotent: %v", err)
	}

	id, err := s.Append(ctx, "order_placed", map[string]string{"order_id": "o-1", "quantity": "3"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := s.Read(ctx, "order_placed", "inventory-group", "c1", 1, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != id || msgs[0].Fields["quantity"] != "3" {
		t.Fatalf("msgs = %+v", msgs)
	}
	if msgs[0].Topic != "order_placed" {
		t.Fatalf("topic = %q", msgs[0].Topic)
	}

	again, err := s.Read(ctx, "order_placed", "inventory-group", "c1", 1, 10*time.Millisecond)
	if err != nil || len(again) != 1 || again[0].ID != id {
		t.Fatalf("unacked entry not redelivered: %+v, %v", again, err)
	}

	if err := s.Ack(ctx, "order_placed", "inventory-group", id); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := s.Ack(ctx, "order_placed", "inventory-group", id); err != nil {
		t.Fatalf("double ack: %v", err)
	}

	empty, err := s.Read(ctx, "order_placed", "inventory-group", "c1", 1, 10*time.Millisecond)
	if err != nil || len(empty) != 0 {
		t.Fatalf("read after ack = %+v, %v; want empty", empty, err)
	}
}

func TestStreamIDsIncrease(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)

	first, err := s.Append(ctx, "refund_requested", map[string]string{"order_id": "a"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := s.Append(ctx, "refund_requested", map[string]string{"order_id": "b"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first == second {
		t.Fatalf("ids not unique: %s", first)
	}
}

func TestStreamReadMissingGroup(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	_, _ = s.Append(ctx, "order_placed", map[string]string{"k": "v"})

	_, err := s.Read(ctx, "order_placed", "nobody", "c1", 1, 0)
	if err == nil {
		t.Fatal("expected error for missing group")
	}
}
