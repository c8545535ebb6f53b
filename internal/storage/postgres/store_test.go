package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/storagetest"

	"github.com/jackc/pgx/v5/pgxpool"
)

// openTestPool connects to SAGA_TEST_POSTGRES_URL and empties the tables.
// The tests are skipped when the variable is unset.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("SAGA_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SAGA_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE products, orders, reservations`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func TestProductStore(t *testing.T) {
	storagetest.RunProductStore(t, func(t *testing.T) storage.ProductStore {
		return NewProductStore(openTestPool(t))
	})
}

func TestOrderStore(t *testing.T) {
	storagetest.RunOrderStore(t, func(t *testing.T) storage.OrderStore {
		return NewOrderStore(openTestPool(t))
	})
}

func TestNewPoolRejectsBadURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "://not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
}
