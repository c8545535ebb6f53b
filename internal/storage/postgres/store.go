// Package postgres provides PostgreSQL-backed product and order stores on a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    price DOUBLE PRECISION NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity >= 0)
);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    price DOUBLE PRECISION NOT NULL,
    fee DOUBLE PRECISION NOT NULL,
    total DOUBLE PRECISION NOT NULL,
    quantity INTEGER NOT NULL,
    status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reservations (
    order_id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    status TEXT NOT NULL,
    remaining INTEGER NOT NULL
);
`

// NewPool opens a connection pool to url and verifies it.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// ProductStore implements storage.ProductStore.
type ProductStore struct {
	db *pgxpool.Pool
}

func NewProductStore(db *pgxpool.Pool) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (s *ProductStore) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx,
		`SELECT id, name, price, quantity FROM products WHERE id = $1`, id))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, err
}

func (s *ProductStore) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, price, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return out, nil
}

func (s *ProductStore) Save(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO products (id, name, price, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity
	`, p.ID, p.Name, p.Price, p.Quantity)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return p, nil
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		r      domain.Reservation
		status string
	)
	if err := row.Scan(&r.OrderID, &r.ProductID, &r.Quantity, &status, &r.Remaining); err != nil {
		return domain.Reservation{}, err
	}
	var err error
	if r.Status, err = domain.ParseReservationStatus(status); err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}

// Reserve locks the product row, so concurrent orders for one product run
// one at a time. Two deliveries of the same order racing past the lookup
// collide on the reservations primary key and the loser rolls back.
func (s *ProductStore) Reserve(ctx context.Context, orderID, productID string, qty int) (domain.Reservation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r, err := scanReservation(tx.QueryRow(ctx, `
		SELECT order_id, product_id, quantity, status, remaining
		FROM reservations WHERE order_id = $1
	`, orderID))
	if err == nil {
		r.Replayed = true
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, fmt.Errorf("failed to read reservation %s: %w", orderID, err)
	}

	var stock int
	err = tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("failed to lock product %s: %w", productID, err)
	}

	r = domain.Reservation{OrderID: orderID, ProductID: productID, Quantity: qty, Status: domain.ReservationRejected}
	if stock >= qty {
		if _, err := tx.Exec(ctx, `UPDATE products SET quantity = quantity - $2 WHERE id = $1`, productID, qty); err != nil {
			return domain.Reservation{}, fmt.Errorf("failed to decrement product %s: %w", productID, err)
		}
		stock -= qty
		r.Status = domain.ReservationReserved
	}
	r.Remaining = stock

	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations (order_id, product_id, quantity, status, remaining)
		VALUES ($1, $2, $3, $4, $5)
	`, r.OrderID, r.ProductID, r.Quantity, string(r.Status), r.Remaining); err != nil {
		return domain.Reservation{}, fmt.Errorf("failed to record reservation %s: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Reservation{}, fmt.Errorf("failed to commit reservation %s: %w", orderID, err)
	}
	return r, nil
}

func (s *ProductStore) MarkRefundRequested(ctx context.Context, orderID string) error {
	var found bool
	err := s.db.QueryRow(ctx, `
		WITH marked AS (
			UPDATE reservations SET status = $2
			WHERE order_id = $1 AND status = $3
			RETURNING order_id
		)
		SELECT EXISTS (SELECT 1 FROM marked) OR EXISTS (SELECT 1 FROM reservations WHERE order_id = $1)
	`, orderID, string(domain.ReservationRefundRequested), string(domain.ReservationRejected)).Scan(&found)
	if err != nil {
		return fmt.Errorf("failed to mark refund for order %s: %w", orderID, err)
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

// OrderStore implements storage.OrderStore.
type OrderStore struct {
	db *pgxpool.Pool
}

func NewOrderStore(db *pgxpool.Pool) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, product_id, price, fee, total, quantity, status
		FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.ProductID, &o.Price, &o.Fee, &o.Total, &o.Quantity, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	if o.Status, err = domain.ParseOrderStatus(status); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *OrderStore) Save(ctx context.Context, o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (id, product_id, price, fee, total, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			price = EXCLUDED.price,
			fee = EXCLUDED.fee,
			total = EXCLUDED.total,
			quantity = EXCLUDED.quantity,
			status = EXCLUDED.status
	`, o.ID, o.ProductID, o.Price, o.Fee, o.Total, o.Quantity, string(o.Status))
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to save order %s: %w", o.ID, err)
	}
	return o, nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *OrderStore) CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *OrderStore) SetStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.OrderStatus, error) {
	var previous string
	err := s.db.QueryRow(ctx, `
		UPDATE orders o SET status = $2
		FROM (SELECT id, status FROM orders WHERE id = $1 FOR UPDATE) prev
		WHERE o.id = prev.id
		RETURNING prev.status
	`, id, string(to)).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to update order %s: %w", id, err)
	}
	return domain.ParseOrderStatus(previous)
}

var (
	_ storage.ProductStore = (*ProductStore)(nil)
	_ storage.OrderStore   = (*OrderStore)(nil)
)
