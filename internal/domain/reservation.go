package domain

import "fmt"

// ReservationStatus is the inventory decision recorded for one order.
type ReservationStatus string

const (
	// ReservationReserved means the ordered quantity left stock.
	ReservationReserved ReservationStatus = "reserved"
	// ReservationRejected means stock was short and no refund has been
	// published yet.
	ReservationRejected ReservationStatus = "rejected"
	// ReservationRefundRequested means the refund for a rejected order went
	// out.
	ReservationRefundRequested ReservationStatus = "refund_requested"
)

// ParseReservationStatus converts a stored status string.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch ReservationStatus(s) {
	case ReservationReserved, ReservationRejected, ReservationRefundRequested:
		return ReservationStatus(s), nil
	default:
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
}

// Reservation records how an order_placed event was settled against stock.
// It is keyed by order id so a redelivered event finds the earlier decision
// instead of taking stock again.
type Reservation struct {
	OrderID   string
	ProductID string
	Quantity  int
	Status    ReservationStatus
	// Remaining is the product stock right after the decision was made.
	Remaining int
	// Replayed is set when the decision already existed and stock was left
	// untouched by this call.
	Replayed bool
}
