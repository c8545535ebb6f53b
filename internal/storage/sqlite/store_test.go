package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/storagetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saga.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestProductStore(t *testing.T) {
	storagetest.RunProductStore(t, func(t *testing.T) storage.ProductStore {
		return openTempStore(t).Products()
	})
}

func TestOrderStore(t *testing.T) {
	storagetest.RunOrderStore(t, func(t *testing.T) storage.OrderStore {
		return openTempStore(t).Orders()
	})
}

func TestOpenIsIdempotentAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "saga.db")

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Products().Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := first.Products().Reserve(ctx, "o-1", "P1", 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.Products().Get(ctx, "P1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Quantity != 3 {
		t.Fatalf("quantity = %d, want 3", got.Quantity)
	}

	r, err := second.Products().Reserve(ctx, "o-1", "P1", 2)
	if err != nil {
		t.Fatalf("reserve after reopen: %v", err)
	}
	if !r.Replayed || r.Status != domain.ReservationReserved {
		t.Fatalf("reservation after reopen = %+v, want replayed reserved", r)
	}
	got, _ = second.Products().Get(ctx, "P1")
	if got.Quantity != 3 {
		t.Fatalf("quantity after replay = %d, want 3", got.Quantity)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestExtractUp(t *testing.T) {
	got := extractUp("-- +migrate Up\nCREATE TABLE t (id INT);\n-- +migrate Down\nDROP TABLE t;")
	if got != "\nCREATE TABLE t (id INT);\n" {
		t.Fatalf("extractUp = %q", got)
	}
}
