package inventory

import (
	"context"
	"fmt"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ReservationHandler consumes order_placed events. It takes the ordered
// quantity out of stock, or asks for a refund when stock is short.
type ReservationHandler struct {
	store     storage.ProductStore
	publisher stream.Publisher
	logger    observability.Logger
	tracer    observability.Tracer
}

// NewReservationHandler creates a handler with explicit dependencies
func NewReservationHandler(store storage.ProductStore, publisher stream.Publisher, logger observability.Logger, tracer observability.Tracer) *ReservationHandler {
	return &ReservationHandler{
		store:     store,
		publisher: publisher,
		logger:    logger,
		tracer:    tracer,
	}
}

// Handle processes one order_placed event. Malformed events are rejected
// permanently; store and publish failures are returned for redelivery.
func (h *ReservationHandler) Handle(ctx context.Context, msg stream.Message) error {
	evt, err := domain.ParseOrderPlaced(msg.Fields)
	if err != nil {
		return domain.Permanent(fmt.Errorf("order_placed %s: %w", msg.ID, err))
	}

	ctx, span := h.tracer.Start(ctx, "inventory.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", evt.OrderID),
		attribute.String("product.id", evt.ProductID),
		attribute.Int("inventory.requested_quantity", evt.Quantity),
	)

	log := h.logger.With(
		zap.String("order_id", evt.OrderID),
		zap.String("product_id", evt.ProductID),
		zap.Int("quantity", evt.Quantity),
	)

	// Events without an order id are keyed by their stream entry, which a
	// redelivery keeps.
	key := evt.OrderID
	if key == "" {
		key = msg.ID
	}

	res, err := h.store.Reserve(ctx, key, evt.ProductID, evt.Quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation failed")
		return fmt.Errorf("reserve stock for product %s: %w", evt.ProductID, err)
	}
	span.SetAttributes(
		attribute.String("inventory.reservation", string(res.Status)),
		attribute.Bool("inventory.replayed", res.Replayed),
		attribute.Int("inventory.remaining", res.Remaining),
	)

	switch res.Status {
	case domain.ReservationReserved:
		span.SetStatus(codes.Ok, "Inventory successfully reserved")
		if res.Replayed {
			log.Debug("Reservation already applied, stock untouched")
			return nil
		}
		log.Info("✅ Inventory reserved", zap.Int("remaining", res.Remaining))
		return nil
	case domain.ReservationRefundRequested:
		span.SetStatus(codes.Ok, "Refund already requested")
		log.Debug("Refund already requested for this order")
		return nil
	}

	refund := observability.InjectFields(ctx, domain.NewRefundFields(msg.Fields, domain.ReasonInsufficientStock))
	refundID, err := h.publisher.Append(ctx, config.RefundRequestedTopic, refund)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund publish failed")
		return fmt.Errorf("publish refund for order %s: %w", evt.OrderID, err)
	}
	span.SetStatus(codes.Ok, "Refund requested")
	log = log.With(zap.String("refund_event_id", refundID))

	// The refund is out; a redelivery must not publish another one, so a
	// failed mark is logged instead of retried.
	if err := h.store.MarkRefundRequested(ctx, key); err != nil {
		log.Error("Failed to record refund request", zap.Error(err))
	}
	log.Warn("Insufficient stock, refund requested", zap.Int("available", res.Remaining))
	return nil
}
