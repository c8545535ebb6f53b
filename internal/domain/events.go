package domain

import (
	"maps"
	"strconv"
	"strings"
)

// Stream field names of the saga events.
const (
	FieldOrderID   = "order_id"
	FieldProductID = "product_id"
	FieldQuantity  = "quantity"
	FieldReason    = "reason"

	// fieldLegacyOrderID is the record primary key older producers sent.
	fieldLegacyOrderID = "pk"
)

// ReasonInsufficientStock tags refunds caused by a failed reservation.
const ReasonInsufficientStock = "insufficient_stock"

// OrderPlacedEvent asks the inventory service to reserve stock for an order.
type OrderPlacedEvent struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// Fields encodes the event as a flat stream entry.
func (e OrderPlacedEvent) Fields() map[string]string {
	return map[string]string{
		FieldOrderID:   e.OrderID,
		FieldProductID: e.ProductID,
		FieldQuantity:  strconv.Itoa(e.Quantity),
	}
}

// ParseOrderPlaced decodes and validates an order_placed entry. The order id
// is carried through to compensation but not required for reservation.
func ParseOrderPlaced(fields map[string]string) (OrderPlacedEvent, error) {
	productID := strings.TrimSpace(fields[FieldProductID])
	if productID == "" {
		return OrderPlacedEvent{}, invalid(FieldProductID, "is required")
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(fields[FieldQuantity]))
	if err != nil {
		return OrderPlacedEvent{}, invalid(FieldQuantity, "is not an integer")
	}
	if quantity <= 0 {
		return OrderPlacedEvent{}, invalid(FieldQuantity, "must be positive")
	}
	return OrderPlacedEvent{
		OrderID:   strings.TrimSpace(fields[FieldOrderID]),
		ProductID: productID,
		Quantity:  quantity,
	}, nil
}

// RefundRequestedEvent asks the payment service to refund an order.
type RefundRequestedEvent struct {
	OrderID   string
	ProductID string
	Quantity  int
	Reason    string
}

// NewRefundFields builds a refund_requested entry from the order_placed entry
// that could not be reserved. The original fields are copied unchanged.
func NewRefundFields(orderPlaced map[string]string, reason string) map[string]string {
	fields := make(map[string]string, len(orderPlaced)+1)
	maps.Copy(fields, orderPlaced)
	fields[FieldReason] = reason
	return fields
}

// ParseRefundRequested decodes a refund_requested entry. Only the order id is
// required; the remaining fields are informational.
func ParseRefundRequested(fields map[string]string) (RefundRequestedEvent, error) {
	orderID := strings.TrimSpace(fields[FieldOrderID])
	if orderID == "" {
		orderID = strings.TrimSpace(fields[fieldLegacyOrderID])
	}
	if orderID == "" {
		return RefundRequestedEvent{}, invalid(FieldOrderID, "is required")
	}
	quantity, _ := strconv.Atoi(strings.TrimSpace(fields[FieldQuantity]))
	return RefundRequestedEvent{
		OrderID:   orderID,
		ProductID: strings.TrimSpace(fields[FieldProductID]),
		Quantity:  quantity,
		Reason:    strings.TrimSpace(fields[FieldReason]),
	}, nil
}
