package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/memory"

	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

// fakeInventory serves a fixed catalogue and records stock writes.
type fakeInventory struct {
	mu       sync.Mutex
	products map[string]domain.Product
	err      error
	updates  []domain.Product
}

func newFakeInventory(products ...domain.Product) *fakeInventory {
	inv := &fakeInventory{products: make(map[string]domain.Product)}
	for _, p := range products {
		inv.products[p.ID] = p
	}
	return inv
}

func (f *fakeInventory) GetProduct(_ context.Context, id string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Product{}, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

func (f *fakeInventory) UpdateProduct(_ context.Context, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, p)
	return nil
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingScheduler) Schedule(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, orderID)
}

type failingPublisher struct{}

func (failingPublisher) Append(context.Context, string, map[string]string) (string, error) {
	return "", errors.New("stream unavailable")
}

var widget = domain.Product{ID: "P1", Name: "Widget", Price: 100, Quantity: 5}

func seedOrder(t *testing.T, orders *memory.OrderStore, status domain.OrderStatus) domain.Order {
	t.Helper()
	o := domain.NewPendingOrder(widget, 1)
	o.Status = status
	saved, err := orders.Save(context.Background(), o)
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return saved
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func statusOf(t *testing.T, orders *memory.OrderStore, id string) domain.OrderStatus {
	t.Helper()
	o, err := orders.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order %s: %v", id, err)
	}
	return o.Status
}

func newTestCompleter(orders *memory.OrderStore, delay time.Duration) *Completer {
	return NewCompleter(orders, delay, zap.NewNop(), testTracer)
}
