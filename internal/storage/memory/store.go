// Package memory provides mutex-guarded in-process record stores.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"github.com/google/uuid"
)

// ProductStore keeps products in a map.
type ProductStore struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	reservations map[string]domain.Reservation
}

// NewProductStore returns an empty product store.
func NewProductStore() *ProductStore {
	return &ProductStore{
		products:     make(map[string]domain.Product),
		reservations: make(map[string]domain.Reservation),
	}
}

func (s *ProductStore) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *ProductStore) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProductStore) Save(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
	return p, nil
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *ProductStore) Reserve(ctx context.Context, orderID, productID string, qty int) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.reservations[orderID]; ok {
		r.Replayed = true
		return r, nil
	}
	p, ok := s.products[productID]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	r := domain.Reservation{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  qty,
		Status:    domain.ReservationRejected,
	}
	if p.Quantity >= qty {
		p.Quantity -= qty
		s.products[productID] = p
		r.Status = domain.ReservationReserved
	}
	r.Remaining = p.Quantity
	s.reservations[orderID] = r
	return r, nil
}

func (s *ProductStore) MarkRefundRequested(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status == domain.ReservationRejected {
		r.Status = domain.ReservationRefundRequested
		s.reservations[orderID] = r
	}
	return nil
}

// OrderStore keeps orders in a map.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderStore returns an empty order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]domain.Order)}
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *OrderStore) Save(ctx context.Context, o domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o
	return o, nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *OrderStore) CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	s.orders[id] = o
	return true, nil
}

func (s *OrderStore) SetStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	previous := o.Status
	o.Status = to
	s.orders[id] = o
	return previous, nil
}

var (
	_ storage.ProductStore = (*ProductStore)(nil)
	_ storage.OrderStore   = (*OrderStore)(nil)
)
