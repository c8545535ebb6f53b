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
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingCanceller struct {
	cancelled []string
}

func (r *recordingCanceller) Cancel(orderID string) bool {
	r.cancelled = append(r.cancelled, orderID)
	return true
}

type brokenOrderStore struct {
	*memory.OrderStore
}

func (brokenOrderStore) SetStatus(context.Context, string, domain.OrderStatus) (domain.OrderStatus, error) {
	return "", errors.New("connection refused")
}

func refundRequested(fields map[string]string) stream.Message {
	return stream.Message{ID: "1-0", Topic: config.RefundRequestedTopic, Fields: fields}
}

func TestCompensationRefundsPendingOrder(t *testing.T) {
	orders := memory.NewOrderStore()
	o := seedOrder(t, orders, domain.StatusPending)
	canceller := &recordingCanceller{}
	h := NewCompensationHandler(orders, canceller, zap.NewNop(), testTracer)

	msg := refundRequested(map[string]string{
		domain.FieldOrderID:   o.ID,
		domain.FieldProductID: "P1",
		domain.FieldQuantity:  "1",
		domain.FieldReason:    domain.ReasonInsufficientStock,
	})
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := statusOf(t, orders, o.ID); got != domain.StatusRefunded {
		t.Fatalf("status = %q, want refunded", got)
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != o.ID {
		t.Fatalf("cancelled = %v", canceller.cancelled)
	}
}

func TestCompensationIsIdempotent(t *testing.T) {
	orders := memory.NewOrderStore()
	o := seedOrder(t, orders, domain.StatusPending)
	h := NewCompensationHandler(orders, nil, zap.NewNop(), testTracer)
	msg := refundRequested(map[string]string{domain.FieldOrderID: o.ID})

	for i := 0; i < 3; i++ {
		if err := h.Handle(context.Background(), msg); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}
	if got := statusOf(t, orders, o.ID); got != domain.StatusRefunded {
		t.Fatalf("status = %q, want refunded", got)
	}
}

func TestCompensationWarnsWhenOverwritingCompletedOrder(t *testing.T) {
	orders := memory.NewOrderStore()
	o := seedOrder(t, orders, domain.StatusCompleted)
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewCompensationHandler(orders, nil, zap.New(core), testTracer)

	if err := h.Handle(context.Background(), refundRequested(map[string]string{domain.FieldOrderID: o.ID})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := statusOf(t, orders, o.ID); got != domain.StatusRefunded {
		t.Fatalf("status = %q, want refunded", got)
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("warnings = %d, want 1", logs.FilterLevelExact(zapcore.WarnLevel).Len())
	}
}

func TestCompensationLogsLegalRefundsQuietly(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.StatusPending, domain.StatusRefunded} {
		t.Run(string(status), func(t *testing.T) {
			orders := memory.NewOrderStore()
			o := seedOrder(t, orders, status)
			core, logs := observer.New(zapcore.DebugLevel)
			h := NewCompensationHandler(orders, nil, zap.New(core), testTracer)

			if err := h.Handle(context.Background(), refundRequested(map[string]string{domain.FieldOrderID: o.ID})); err != nil {
				t.Fatalf("handle: %v", err)
			}
			if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 0 {
				t.Fatalf("warnings = %d, want 0", n)
			}
			if logs.Len() != 1 {
				t.Fatalf("log entries = %d, want 1", logs.Len())
			}
		})
	}
}

func TestCompensationAcceptsLegacyKey(t *testing.T) {
	orders := memory.NewOrderStore()
	o := seedOrder(t, orders, domain.StatusPending)
	h := NewCompensationHandler(orders, nil, zap.NewNop(), testTracer)

	if err := h.Handle(context.Background(), refundRequested(map[string]string{"pk": o.ID})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := statusOf(t, orders, o.ID); got != domain.StatusRefunded {
		t.Fatalf("status = %q, want refunded", got)
	}
}

func TestCompensationOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("missing order id is permanent", func(t *testing.T) {
		h := NewCompensationHandler(memory.NewOrderStore(), nil, zap.NewNop(), testTracer)
		err := h.Handle(ctx, refundRequested(map[string]string{domain.FieldProductID: "P1"}))
		if !domain.IsPermanent(err) {
			t.Fatalf("err = %v, want permanent", err)
		}
	})

	t.Run("unknown order is retried", func(t *testing.T) {
		h := NewCompensationHandler(memory.NewOrderStore(), nil, zap.NewNop(), testTracer)
		err := h.Handle(ctx, refundRequested(map[string]string{domain.FieldOrderID: "missing"}))
		if err == nil || domain.IsPermanent(err) {
			t.Fatalf("err = %v, want retryable", err)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("store failure is retried", func(t *testing.T) {
		h := NewCompensationHandler(brokenOrderStore{memory.NewOrderStore()}, nil, zap.NewNop(), testTracer)
		err := h.Handle(ctx, refundRequested(map[string]string{domain.FieldOrderID: "o-1"}))
		if err == nil || domain.IsPermanent(err) {
			t.Fatalf("err = %v, want retryable", err)
		}
	})
}
