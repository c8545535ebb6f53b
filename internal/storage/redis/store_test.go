package redis

import (
	"context"
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/storagetest"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newClient(t *testing.T) *goredis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestProductStore(t *testing.T) {
	storagetest.RunProductStore(t, func(t *testing.T) storage.ProductStore {
		return NewProductStore(newClient(t))
	})
}

func TestOrderStore(t *testing.T) {
	storagetest.RunOrderStore(t, func(t *testing.T) storage.OrderStore {
		return NewOrderStore(newClient(t))
	})
}

func TestReserveCommitsOnceWithUndecodableProduct(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	s := NewProductStore(client)
	if err := client.HSet(ctx, productKeyPrefix+"P1", "id", "P1", "name", "Widget", "price", "oops", "quantity", 10).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 3; i++ {
		r, err := s.Reserve(ctx, "o-1", "P1", 3)
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if r.Status != domain.ReservationReserved || r.Remaining != 7 {
			t.Fatalf("reserve %d = %+v, want reserved with 7 left", i, r)
		}
	}
	q, err := client.HGet(ctx, productKeyPrefix+"P1", "quantity").Int()
	if err != nil {
		t.Fatalf("read quantity: %v", err)
	}
	if q != 7 {
		t.Fatalf("stored quantity = %d, want 7", q)
	}
}
