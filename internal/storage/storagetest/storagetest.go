// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"
)

// RunProductStore exercises a ProductStore. newStore must return an empty
// store.
func RunProductStore(t *testing.T, newStore func(t *testing.T) storage.ProductStore) {
	t.Run("save assigns id and get returns it", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		saved, err := s.Save(ctx, domain.Product{Name: "Widget", Price: 100, Quantity: 5})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if saved.ID == "" {
			t.Fatal("expected generated id")
		}
		got, err := s.Get(ctx, saved.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != saved {
			t.Fatalf("get = %+v, want %+v", got, saved)
		}
	})

	t.Run("save replaces existing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 5})
		if _, err := s.Save(ctx, domain.Product{ID: "P1", Name: "Gadget", Price: 50, Quantity: 1}); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, _ := s.Get(ctx, "P1")
		if got.Name != "Gadget" || got.Price != 50 || got.Quantity != 1 {
			t.Fatalf("get = %+v", got)
		}
	})

	t.Run("missing product", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if _, err := s.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("get err = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "A", Price: 1, Quantity: 1})
		_, _ = s.Save(ctx, domain.Product{ID: "P2", Name: "B", Price: 2, Quantity: 2})
		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("list = %+v, want 2 products", list)
		}
		if err := s.Delete(ctx, "P1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		list, _ = s.List(ctx)
		if len(list) != 1 || list[0].ID != "P2" {
			t.Fatalf("list after delete = %+v", list)
		}
	})

	t.Run("reserve takes stock while it lasts", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 5})

		r, err := s.Reserve(ctx, "o-a", "P1", 3)
		if err != nil || r.Status != domain.ReservationReserved || r.Remaining != 2 {
			t.Fatalf("reserve = %+v, %v; want reserved with 2 left", r, err)
		}
		r, err = s.Reserve(ctx, "o-b", "P1", 5)
		if err != nil || r.Status != domain.ReservationRejected || r.Remaining != 2 {
			t.Fatalf("reserve beyond stock = %+v, %v; want rejected with 2 left", r, err)
		}
		r, err = s.Reserve(ctx, "o-c", "P1", 2)
		if err != nil || r.Status != domain.ReservationReserved || r.Remaining != 0 {
			t.Fatalf("reserve to zero = %+v, %v", r, err)
		}
		got, _ := s.Get(ctx, "P1")
		if got.Quantity != 0 {
			t.Fatalf("quantity = %d, want 0", got.Quantity)
		}
	})

	t.Run("reserve is settled once per order", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 5})

		for i := 0; i < 3; i++ {
			r, err := s.Reserve(ctx, "o-1", "P1", 2)
			if err != nil {
				t.Fatalf("reserve %d: %v", i, err)
			}
			if r.Status != domain.ReservationReserved || r.Remaining != 3 {
				t.Fatalf("reserve %d = %+v, want reserved with 3 left", i, r)
			}
			if r.Replayed != (i > 0) {
				t.Fatalf("reserve %d replayed = %v", i, r.Replayed)
			}
		}
		got, _ := s.Get(ctx, "P1")
		if got.Quantity != 3 {
			t.Fatalf("quantity = %d, want 3", got.Quantity)
		}
	})

	t.Run("rejected reservation records the refund", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 1})

		r, err := s.Reserve(ctx, "o-2", "P1", 5)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if r.Status != domain.ReservationRejected || r.Remaining != 1 || r.Replayed {
			t.Fatalf("reserve = %+v, want fresh rejection with 1 left", r)
		}
		if err := s.MarkRefundRequested(ctx, "o-2"); err != nil {
			t.Fatalf("mark refund: %v", err)
		}
		if err := s.MarkRefundRequested(ctx, "o-2"); err != nil {
			t.Fatalf("repeat mark refund: %v", err)
		}

		// Stock arriving later does not change a settled order.
		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 10})
		r, err = s.Reserve(ctx, "o-2", "P1", 5)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if r.Status != domain.ReservationRefundRequested || !r.Replayed {
			t.Fatalf("replay = %+v, want replayed refund_requested", r)
		}
		got, _ := s.Get(ctx, "P1")
		if got.Quantity != 10 {
			t.Fatalf("quantity = %d, want 10", got.Quantity)
		}
	})

	t.Run("reserve unknown product records nothing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if _, err := s.Reserve(ctx, "o-3", "P1", 1); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("reserve err = %v, want ErrNotFound", err)
		}
		if err := s.MarkRefundRequested(ctx, "o-3"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("mark refund err = %v, want ErrNotFound", err)
		}
		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 2})
		r, err := s.Reserve(ctx, "o-3", "P1", 1)
		if err != nil || r.Replayed || r.Status != domain.ReservationReserved {
			t.Fatalf("reserve after product appeared = %+v, %v", r, err)
		}
	})

	t.Run("concurrent reservations never oversell", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.Save(ctx, domain.Product{ID: "P1", Name: "Widget", Price: 1, Quantity: 4})

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			reserved int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := s.Reserve(ctx, fmt.Sprintf("o-%d", i), "P1", 1)
				if err != nil {
					t.Errorf("reserve: %v", err)
					return
				}
				if r.Status == domain.ReservationReserved {
					mu.Lock()
					reserved++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		got, _ := s.Get(ctx, "P1")
		if reserved != 4 || got.Quantity != 0 {
			t.Fatalf("reserved = %d, quantity = %d; want 4 and 0", reserved, got.Quantity)
		}
	})
}

// RunOrderStore exercises an OrderStore. newStore must return an empty store.
func RunOrderStore(t *testing.T, newStore func(t *testing.T) storage.OrderStore) {
	pending := func() domain.Order {
		return domain.NewPendingOrder(domain.Product{ID: "P1", Price: 100}, 3)
	}

	t.Run("save assigns id and get returns it", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		saved, err := s.Save(ctx, pending())
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if saved.ID == "" {
			t.Fatal("expected generated id")
		}
		got, err := s.Get(ctx, saved.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != saved {
			t.Fatalf("get = %+v, want %+v", got, saved)
		}
		if got.Fee != 20 || got.Total != 120 {
			t.Fatalf("pricing = %v/%v, want 20/120", got.Fee, got.Total)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if _, err := s.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("get err = %v", err)
		}
		if err := s.Delete(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("delete err = %v", err)
		}
		if _, err := s.CompareAndSetStatus(ctx, "nope", domain.StatusPending, domain.StatusCompleted); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("cas err = %v", err)
		}
		if _, err := s.SetStatus(ctx, "nope", domain.StatusRefunded); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("set status err = %v", err)
		}
	})

	t.Run("compare and set", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		o, _ := s.Save(ctx, pending())

		ok, err := s.CompareAndSetStatus(ctx, o.ID, domain.StatusPending, domain.StatusCompleted)
		if err != nil || !ok {
			t.Fatalf("cas = %v, %v", ok, err)
		}
		ok, err = s.CompareAndSetStatus(ctx, o.ID, domain.StatusPending, domain.StatusRefunded)
		if err != nil || ok {
			t.Fatalf("cas on completed order = %v, %v; want false, nil", ok, err)
		}
		got, _ := s.Get(ctx, o.ID)
		if got.Status != domain.StatusCompleted {
			t.Fatalf("status = %s, want completed", got.Status)
		}
	})

	t.Run("set status returns previous", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		o, _ := s.Save(ctx, pending())

		prev, err := s.SetStatus(ctx, o.ID, domain.StatusRefunded)
		if err != nil || prev != domain.StatusPending {
			t.Fatalf("set status = %s, %v; want pending", prev, err)
		}
		prev, err = s.SetStatus(ctx, o.ID, domain.StatusRefunded)
		if err != nil || prev != domain.StatusRefunded {
			t.Fatalf("repeat set status = %s, %v; want refunded", prev, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		o, _ := s.Save(ctx, pending())

		if err := s.Delete(ctx, o.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.Get(ctx, o.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("get after delete err = %v", err)
		}
	})
}
