package payment

import (
	"context"
	"fmt"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Canceller disarms the background completion of an order.
type Canceller interface {
	Cancel(orderID string) bool
}

// CompensationHandler consumes refund_requested events and marks the order
// refunded.
type CompensationHandler struct {
	orders    storage.OrderStore
	canceller Canceller
	logger    observability.Logger
	tracer    observability.Tracer
}

// NewCompensationHandler creates a handler with explicit dependencies. A nil
// canceller is allowed when no completer runs in this process.
func NewCompensationHandler(orders storage.OrderStore, canceller Canceller, logger observability.Logger, tracer observability.Tracer) *CompensationHandler {
	return &CompensationHandler{
		orders:    orders,
		canceller: canceller,
		logger:    logger,
		tracer:    tracer,
	}
}

// Handle refunds the order named by the event. The refund overwrites any
// status; overwriting a completed order is logged as an inconsistency.
func (h *CompensationHandler) Handle(ctx context.Context, msg stream.Message) error {
	evt, err := domain.ParseRefundRequested(msg.Fields)
	if err != nil {
		return domain.Permanent(fmt.Errorf("refund_requested %s: %w", msg.ID, err))
	}

	ctx, span := h.tracer.Start(ctx, "payment.refund")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", evt.OrderID),
		attribute.String("refund.reason", evt.Reason),
	)

	if h.canceller != nil {
		h.canceller.Cancel(evt.OrderID)
	}

	previous, err := h.orders.SetStatus(ctx, evt.OrderID, domain.StatusRefunded)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund failed")
		return fmt.Errorf("refund order %s: %w", evt.OrderID, err)
	}
	span.SetAttributes(attribute.String("order.previous_status", string(previous)))
	span.SetStatus(codes.Ok, "refunded")

	log := h.logger.With(zap.String("order_id", evt.OrderID), zap.String("reason", evt.Reason))
	switch {
	case previous == domain.StatusRefunded:
		log.Debug("Order already refunded, redelivery ignored")
	case !domain.CanTransition(previous, domain.StatusRefunded):
		log.Warn("Inconsistent terminal state: refund overwrote a finished order",
			zap.String("previous_status", string(previous)),
			zap.String("status", string(domain.StatusRefunded)),
		)
	default:
		log.Info("💸 Order refunded")
	}
	return nil
}
