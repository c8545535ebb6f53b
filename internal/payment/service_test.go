package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/memory"

	"go.uber.org/zap"
)

func TestCreateOrderPlacesPendingOrder(t *testing.T) {
	ctx := context.Background()
	orders := memory.NewOrderStore()
	s := stream.NewMemory()
	sched := &recordingScheduler{}
	inv := newFakeInventory(widget)
	svc := NewService(orders, inv, s, sched, zap.NewNop(), testTracer)

	order, err := svc.CreateOrder(ctx, "P1", 3)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID == "" || order.Status != domain.StatusPending {
		t.Fatalf("order = %+v", order)
	}
	if order.Fee != 20 || order.Total != 120 || order.Quantity != 3 || order.ProductID != "P1" {
		t.Fatalf("pricing = %+v", order)
	}

	stored, err := svc.GetOrder(ctx, order.ID)
	if err != nil || stored.Status != domain.StatusPending {
		t.Fatalf("stored = %+v, err %v", stored, err)
	}

	events := s.Messages(config.OrderPlacedTopic)
	if len(events) != 1 {
		t.Fatalf("order_placed events = %d, want 1", len(events))
	}
	evt, err := domain.ParseOrderPlaced(events[0].Fields)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if evt.OrderID != order.ID || evt.ProductID != "P1" || evt.Quantity != 3 {
		t.Fatalf("event = %+v", evt)
	}
	if len(sched.ids) != 1 || sched.ids[0] != order.ID {
		t.Fatalf("scheduled = %v", sched.ids)
	}
	if len(inv.updates) != 0 {
		t.Fatal("stock written without the legacy flag")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	s := stream.NewMemory()
	svc := NewService(memory.NewOrderStore(), newFakeInventory(widget), s, &recordingScheduler{}, zap.NewNop(), testTracer)

	cases := []struct {
		name      string
		productID string
		quantity  int
		want      error
	}{
		{"missing id", "  ", 1, ErrMissingFields},
		{"zero quantity", "P1", 0, ErrInvalidQuantity},
		{"negative quantity", "P1", -3, ErrInvalidQuantity},
		{"unknown product", "P9", 1, ErrProductNotFound},
		{"insufficient stock", "P1", 6, ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateOrder(ctx, tc.productID, tc.quantity); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if n := len(s.Messages(config.OrderPlacedTopic)); n != 0 {
		t.Fatalf("rejected orders published %d events", n)
	}
}

func TestCreateOrderInsufficientStockMessage(t *testing.T) {
	svc := NewService(memory.NewOrderStore(), newFakeInventory(widget), stream.NewMemory(), &recordingScheduler{}, zap.NewNop(), testTracer)

	_, err := svc.CreateOrder(context.Background(), "P1", 10)
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if stockErr.Error() != "Not enough stock available. Only 5 units in stock." {
		t.Fatalf("message = %q", stockErr.Error())
	}
}

func TestCreateOrderInventoryUnavailable(t *testing.T) {
	inv := newFakeInventory(widget)
	inv.err = ErrInventoryUnavailable
	svc := NewService(memory.NewOrderStore(), inv, stream.NewMemory(), &recordingScheduler{}, zap.NewNop(), testTracer)

	if _, err := svc.CreateOrder(context.Background(), "P1", 1); !errors.Is(err, ErrInventoryUnavailable) {
		t.Fatalf("err = %v, want ErrInventoryUnavailable", err)
	}
}

type recordingOrderStore struct {
	*memory.OrderStore
	saved []string
}

func (s *recordingOrderStore) Save(ctx context.Context, o domain.Order) (domain.Order, error) {
	o, err := s.OrderStore.Save(ctx, o)
	if err == nil {
		s.saved = append(s.saved, o.ID)
	}
	return o, err
}

func TestCreateOrderPublishFailureRemovesOrder(t *testing.T) {
	ctx := context.Background()
	orders := &recordingOrderStore{OrderStore: memory.NewOrderStore()}
	sched := &recordingScheduler{}
	svc := NewService(orders, newFakeInventory(widget), failingPublisher{}, sched, zap.NewNop(), testTracer)

	if _, err := svc.CreateOrder(ctx, "P1", 1); !errors.Is(err, ErrEventStreamUnavailable) {
		t.Fatalf("err = %v, want ErrEventStreamUnavailable", err)
	}
	if len(orders.saved) != 1 {
		t.Fatalf("saved orders = %d, want 1", len(orders.saved))
	}
	if _, err := orders.Get(ctx, orders.saved[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get unpublished order err = %v, want ErrNotFound", err)
	}
	if len(sched.ids) != 0 {
		t.Fatal("unpublished order scheduled for completion")
	}
}

func TestCreateOrderLegacyStockWrite(t *testing.T) {
	inv := newFakeInventory(widget)
	svc := NewService(memory.NewOrderStore(), inv, stream.NewMemory(), &recordingScheduler{}, zap.NewNop(), testTracer,
		WithLegacyStockWrite(true))

	if _, err := svc.CreateOrder(context.Background(), "P1", 2); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(inv.updates) != 1 {
		t.Fatalf("stock writes = %d, want 1", len(inv.updates))
	}
	if got := inv.updates[0]; got.ID != "P1" || got.Quantity != 3 {
		t.Fatalf("stock write = %+v, want P1 with quantity 3", got)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := NewService(memory.NewOrderStore(), newFakeInventory(), stream.NewMemory(), &recordingScheduler{}, zap.NewNop(), testTracer)
	if _, err := svc.GetOrder(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
