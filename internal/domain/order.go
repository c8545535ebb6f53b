package domain

import "fmt"

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusRefunded  OrderStatus = "refunded"
)

// FeeRate is the fixed payment fee charged on top of the unit price.
const FeeRate = 0.2

// ParseOrderStatus converts a stored status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPending, StatusCompleted, StatusRefunded:
		return OrderStatus(s), nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Terminal reports whether no further transition is legal from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Only pending orders move, and only into a terminal state.
func CanTransition(from, to OrderStatus) bool {
	return from == StatusPending && to.Terminal()
}

// Order is the payment-side record of a purchase.
type Order struct {
	ID        string      `json:"id"`
	ProductID string      `json:"product_id"`
	Price     float64     `json:"price"`
	Fee       float64     `json:"fee"`
	Total     float64     `json:"total"`
	Quantity  int         `json:"quantity"`
	Status    OrderStatus `json:"status"`
}

// NewPendingOrder prices an order for product at the current unit price.
func NewPendingOrder(product Product, quantity int) Order {
	fee := FeeRate * product.Price
	return Order{
		ProductID: product.ID,
		Price:     product.Price,
		Fee:       fee,
		Total:     product.Price + fee,
		Quantity:  quantity,
		Status:    StatusPending,
	}
}
