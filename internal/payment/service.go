// Package payment owns orders: it starts the order saga, settles pending
// orders in the background and applies refunds requested by inventory.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Scheduler arms the background completion of an order.
type Scheduler interface {
	Schedule(orderID string)
}

// Service places and reads orders.
type Service struct {
	orders    storage.OrderStore
	inventory InventoryClient
	publisher stream.Publisher
	completer Scheduler
	logger    observability.Logger
	tracer    observability.Tracer

	// legacyStockWrite also PUTs the reduced stock to the inventory service.
	// The reservation handler decrements stock too, so enabling it counts
	// every order twice.
	legacyStockWrite bool
}

// Option customises a Service.
type Option func(*Service)

// WithLegacyStockWrite enables the synchronous stock write after an order is
// placed.
func WithLegacyStockWrite(enabled bool) Option {
	return func(s *Service) { s.legacyStockWrite = enabled }
}

// NewService creates a new payment service instance with explicit dependencies
func NewService(orders storage.OrderStore, inv InventoryClient, publisher stream.Publisher, completer Scheduler, logger observability.Logger, tracer observability.Tracer, opts ...Option) *Service {
	s := &Service{
		orders:    orders,
		inventory: inv,
		publisher: publisher,
		completer: completer,
		logger:    logger,
		tracer:    tracer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder checks stock, persists a pending order, publishes order_placed
// and schedules completion. The stock check is advisory; the reservation
// handler decides.
func (s *Service) CreateOrder(ctx context.Context, productID string, quantity int) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "payment.create_order")
	defer span.End()

	productID = strings.TrimSpace(productID)
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("order.quantity", quantity))

	if productID == "" {
		return domain.Order{}, ErrMissingFields
	}
	if quantity <= 0 {
		return domain.Order{}, ErrInvalidQuantity
	}

	product, err := s.inventory.GetProduct(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}
	if product.Quantity < quantity {
		return domain.Order{}, &InsufficientStockError{Available: product.Quantity}
	}
	product.ID = productID

	order, err := s.orders.Save(ctx, domain.NewPendingOrder(product, quantity))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order failed")
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	log := s.logger.With(zap.String("order_id", order.ID), zap.String("product_id", productID))

	evt := domain.OrderPlacedEvent{OrderID: order.ID, ProductID: productID, Quantity: quantity}
	eventID, err := s.publisher.Append(ctx, config.OrderPlacedTopic, observability.InjectFields(ctx, evt.Fields()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish order_placed failed")
		// Without the event nothing would ever reserve stock or refund.
		if delErr := s.orders.Delete(context.WithoutCancel(ctx), order.ID); delErr != nil {
			log.Error("Failed to remove unpublished order", zap.Error(delErr))
		}
		return domain.Order{}, fmt.Errorf("%w: %v", ErrEventStreamUnavailable, err)
	}
	log.Info("🛒 Order placed", zap.String("event_id", eventID), zap.Float64("total", order.Total))

	if s.legacyStockWrite {
		product.Quantity -= quantity
		if err := s.inventory.UpdateProduct(ctx, product); err != nil {
			log.Warn("Failed to update inventory", zap.Error(err))
		}
	}

	s.completer.Schedule(order.ID)
	span.SetStatus(codes.Ok, "order placed")
	return order, nil
}

// GetOrder returns domain.ErrNotFound for an unknown id.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.orders.Get(ctx, strings.TrimSpace(id))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, err
}
