package payment

import (
	"context"
	"sync"
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// completeTimeout bounds the store update run when a timer fires.
const completeTimeout = 5 * time.Second

type completion struct {
	timer *time.Timer
}

// Completer settles pending orders after a fixed delay, standing in for an
// asynchronous payment provider. An order is completed only if it is still
// pending when its timer fires, so a refund recorded first always wins.
type Completer struct {
	orders storage.OrderStore
	delay  time.Duration
	logger observability.Logger
	tracer observability.Tracer

	mu       sync.Mutex
	timers   map[string]*completion
	stopped  bool
	inflight sync.WaitGroup
}

// NewCompleter creates a completer firing delay after each Schedule.
func NewCompleter(orders storage.OrderStore, delay time.Duration, logger observability.Logger, tracer observability.Tracer) *Completer {
	return &Completer{
		orders: orders,
		delay:  delay,
		logger: logger,
		tracer: tracer,
		timers: make(map[string]*completion),
	}
}

// Schedule arms the completion timer of orderID, replacing an earlier one.
func (c *Completer) Schedule(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		c.logger.Warn("Completer stopped, order left pending", zap.String("order_id", orderID))
		return
	}
	if prev, ok := c.timers[orderID]; ok {
		prev.timer.Stop()
	}
	entry := &completion{}
	entry.timer = time.AfterFunc(c.delay, func() { c.fire(orderID, entry) })
	c.timers[orderID] = entry
}

// Cancel disarms the timer of orderID. It reports whether a timer was
// pending.
func (c *Completer) Cancel(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.timers[orderID]
	if !ok {
		return false
	}
	delete(c.timers, orderID)
	entry.timer.Stop()
	return true
}

// Pending reports how many timers are armed.
func (c *Completer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop disarms every timer and waits for completions already running.
// Orders whose timers were disarmed stay pending.
func (c *Completer) Stop() {
	c.mu.Lock()
	c.stopped = true
	for id, entry := range c.timers {
		entry.timer.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	c.inflight.Wait()
}

func (c *Completer) fire(orderID string, entry *completion) {
	c.mu.Lock()
	if c.timers[orderID] != entry || c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.timers, orderID)
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), completeTimeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "payment.complete")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	ok, err := c.orders.CompareAndSetStatus(ctx, orderID, domain.StatusPending, domain.StatusCompleted)
	switch {
	case err != nil:
		span.RecordError(err)
		c.logger.Error("❌ Failed to complete order", zap.String("order_id", orderID), zap.Error(err))
	case ok:
		c.logger.Info("✅ Order completed", zap.String("order_id", orderID))
	default:
		c.logger.Info("Order no longer pending, completion skipped", zap.String("order_id", orderID))
	}
	span.SetAttributes(attribute.Bool("payment.completed", ok))
}
