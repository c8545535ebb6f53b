// Package redis stores products and orders as Redis hashes. Conditional
// updates run as Lua scripts so they are atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	productKeyPrefix     = "product:"
	productIndexKey      = "products"
	orderKeyPrefix       = "order:"
	orderIndexKey        = "orders"
	reservationKeyPrefix = "reservation:"
)

// reserveScript settles one order against stock. KEYS are the product and
// reservation hashes. It returns {status, remaining, replayed} or
// {"missing", 0, 0} when the product does not exist.
var reserveScript = goredis.NewScript(`
local prev = redis.call('HMGET', KEYS[2], 'status', 'remaining')
if prev[1] then return {prev[1], tonumber(prev[2]), 1} end
local q = redis.call('HGET', KEYS[1], 'quantity')
if not q then return {'missing', 0, 0} end
q = tonumber(q)
local n = tonumber(ARGV[1])
local status = 'rejected'
if q >= n then
  q = q - n
  redis.call('HSET', KEYS[1], 'quantity', q)
  status = 'reserved'
end
redis.call('HSET', KEYS[2], 'order_id', ARGV[2], 'product_id', ARGV[3], 'quantity', n, 'status', status, 'remaining', q)
return {status, q, 0}
`)

// markRefundScript returns 1 when the reservation exists and -1 otherwise.
var markRefundScript = goredis.NewScript(`
local s = redis.call('HGET', KEYS[1], 'status')
if not s then return -1 end
if s == 'rejected' then redis.call('HSET', KEYS[1], 'status', ARGV[1]) end
return 1
`)

// casStatusScript returns 1 when the status moved, 0 when it did not match
// and -1 when the order does not exist.
var casStatusScript = goredis.NewScript(`
local s = redis.call('HGET', KEYS[1], 'status')
if not s then return -1 end
if s ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
return 1
`)

// setStatusScript returns the replaced status, or nil for a missing order.
var setStatusScript = goredis.NewScript(`
local s = redis.call('HGET', KEYS[1], 'status')
if not s then return false end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
return s
`)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ProductStore keeps products in hashes under product:<id>.
type ProductStore struct {
	client goredis.UniversalClient
}

// NewProductStore wraps client. The caller owns the client.
func NewProductStore(client goredis.UniversalClient) *ProductStore {
	return &ProductStore{client: client}
}

func productFromHash(values map[string]string) (domain.Product, error) {
	price, err := strconv.ParseFloat(values["price"], 64)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode price: %w", err)
	}
	quantity, err := strconv.Atoi(values["quantity"])
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode quantity: %w", err)
	}
	return domain.Product{
		ID:       values["id"],
		Name:     values["name"],
		Price:    price,
		Quantity: quantity,
	}, nil
}

func (s *ProductStore) Get(ctx context.Context, id string) (domain.Product, error) {
	values, err := s.client.HGetAll(ctx, productKeyPrefix+id).Result()
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	if len(values) == 0 {
		return domain.Product{}, domain.ErrNotFound
	}
	return productFromHash(values)
}

func (s *ProductStore) List(ctx context.Context) ([]domain.Product, error) {
	ids, err := s.client.SMembers(ctx, productIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	sort.Strings(ids)

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, productKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]domain.Product, 0, len(ids))
	for _, cmd := range cmds {
		values := cmd.Val()
		if len(values) == 0 {
			continue
		}
		p, err := productFromHash(values)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *ProductStore) Save(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, productKeyPrefix+p.ID, map[string]interface{}{
			"id":       p.ID,
			"name":     p.Name,
			"price":    formatFloat(p.Price),
			"quantity": p.Quantity,
		})
		pipe.SAdd(ctx, productIndexKey, p.ID)
		return nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return p, nil
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	var del *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, productKeyPrefix+id)
		pipe.SRem(ctx, productIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if del.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ProductStore) Reserve(ctx context.Context, orderID, productID string, qty int) (domain.Reservation, error) {
	keys := []string{productKeyPrefix + productID, reservationKeyPrefix + orderID}
	res, err := reserveScript.Run(ctx, s.client, keys, qty, orderID, productID).Slice()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reserve product %s for order %s: %w", productID, orderID, err)
	}
	if len(res) != 3 {
		return domain.Reservation{}, fmt.Errorf("reserve product %s for order %s: unexpected reply %v", productID, orderID, res)
	}
	status, _ := res[0].(string)
	remaining, _ := res[1].(int64)
	replayed, _ := res[2].(int64)
	if status == "missing" {
		return domain.Reservation{}, domain.ErrNotFound
	}

	r := domain.Reservation{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  qty,
		Remaining: int(remaining),
		Replayed:  replayed == 1,
	}
	if r.Status, err = domain.ParseReservationStatus(status); err != nil {
		// Only reachable on a replay, so stock was not touched by this call.
		return domain.Reservation{}, fmt.Errorf("reservation for order %s: %w", orderID, err)
	}
	return r, nil
}

func (s *ProductStore) MarkRefundRequested(ctx context.Context, orderID string) error {
	res, err := markRefundScript.Run(ctx, s.client, []string{reservationKeyPrefix + orderID},
		string(domain.ReservationRefundRequested)).Int64()
	if err != nil {
		return fmt.Errorf("mark refund for order %s: %w", orderID, err)
	}
	if res < 0 {
		return domain.ErrNotFound
	}
	return nil
}

// OrderStore keeps orders in hashes under order:<id>.
type OrderStore struct {
	client goredis.UniversalClient
}

// NewOrderStore wraps client. The caller owns the client.
func NewOrderStore(client goredis.UniversalClient) *OrderStore {
	return &OrderStore{client: client}
}

func orderFromHash(values map[string]string) (domain.Order, error) {
	var (
		o   domain.Order
		err error
	)
	o.ID = values["id"]
	o.ProductID = values["product_id"]
	if o.Price, err = strconv.ParseFloat(values["price"], 64); err != nil {
		return domain.Order{}, fmt.Errorf("decode price: %w", err)
	}
	if o.Fee, err = strconv.ParseFloat(values["fee"], 64); err != nil {
		return domain.Order{}, fmt.Errorf("decode fee: %w", err)
	}
	if o.Total, err = strconv.ParseFloat(values["total"], 64); err != nil {
		return domain.Order{}, fmt.Errorf("decode total: %w", err)
	}
	if o.Quantity, err = strconv.Atoi(values["quantity"]); err != nil {
		return domain.Order{}, fmt.Errorf("decode quantity: %w", err)
	}
	if o.Status, err = domain.ParseOrderStatus(values["status"]); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	values, err := s.client.HGetAll(ctx, orderKeyPrefix+id).Result()
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	if len(values) == 0 {
		return domain.Order{}, domain.ErrNotFound
	}
	return orderFromHash(values)
}

func (s *OrderStore) Save(ctx context.Context, o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, orderKeyPrefix+o.ID, map[string]interface{}{
			"id":         o.ID,
			"product_id": o.ProductID,
			"price":      formatFloat(o.Price),
			"fee":        formatFloat(o.Fee),
			"total":      formatFloat(o.Total),
			"quantity":   o.Quantity,
			"status":     string(o.Status),
		})
		pipe.SAdd(ctx, orderIndexKey, o.ID)
		return nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return o, nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	var del *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, orderKeyPrefix+id)
		pipe.SRem(ctx, orderIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	if del.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *OrderStore) CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	res, err := casStatusScript.Run(ctx, s.client, []string{orderKeyPrefix + id}, string(from), string(to)).Int64()
	if err != nil {
		return false, fmt.Errorf("update order %s: %w", id, err)
	}
	if res < 0 {
		return false, domain.ErrNotFound
	}
	return res == 1, nil
}

func (s *OrderStore) SetStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.OrderStatus, error) {
	prev, err := setStatusScript.Run(ctx, s.client, []string{orderKeyPrefix + id}, string(to)).Text()
	if errors.Is(err, goredis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("update order %s: %w", id, err)
	}
	return domain.ParseOrderStatus(prev)
}

var (
	_ storage.ProductStore = (*ProductStore)(nil)
	_ storage.OrderStore   = (*OrderStore)(nil)
)
