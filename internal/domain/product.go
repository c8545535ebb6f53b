package domain

import "strings"

// Product is the inventory stock record. Quantity never goes negative as an
// effect of saga processing; stores only decrement it conditionally.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Validate checks the writable fields of a product.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "is required")
	}
	if p.Price < 0 {
		return invalid("price", "must be >= 0")
	}
	if p.Quantity < 0 {
		return invalid("quantity", "must be >= 0")
	}
	return nil
}
