// Package storage defines the keyed record stores owned by the inventory and
// payment services. Every backend implements the conditional updates
// atomically so concurrent handlers cannot lose updates.
package storage

import (
	"context"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
)

// ProductStore persists the inventory ledger.
type ProductStore interface {
	// Get returns domain.ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	// Save inserts or replaces p, assigning a new id when p.ID is empty.
	Save(ctx context.Context, p domain.Product) (domain.Product, error)
	Delete(ctx context.Context, id string) error
	// Reserve settles order orderID against the stock of productID once.
	// The first call decrements when qty units remain and records the
	// decision in the same atomic step; later calls for the same orderID
	// return that decision with Replayed set and leave stock alone.
	// An unknown product returns domain.ErrNotFound and records nothing.
	Reserve(ctx context.Context, orderID, productID string, qty int) (domain.Reservation, error)
	// MarkRefundRequested moves a rejected reservation to
	// refund_requested. Other states are left as they are.
	MarkRefundRequested(ctx context.Context, orderID string) error
}

// OrderStore persists the payment ledger.
type OrderStore interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	// Save inserts or replaces o, assigning a new id when o.ID is empty.
	Save(ctx context.Context, o domain.Order) (domain.Order, error)
	Delete(ctx context.Context, id string) error
	// CompareAndSetStatus moves id to `to` only while it is in `from`.
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
	// SetStatus overwrites the status unconditionally and returns the
	// status it replaced.
	SetStatus(ctx context.Context, id string, to domain.OrderStatus) (previous domain.OrderStatus, err error)
}
