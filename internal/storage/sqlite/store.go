// Package sqlite provides SQLite-backed product and order stores.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/sqlite/migrations"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists products and orders in one SQLite database. ProductStore and
// OrderStore expose the two ledgers.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time keeps conditional updates free of SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Products returns the product ledger.
func (s *Store) Products() *ProductStore {
	return &ProductStore{sqlDB: s.sqlDB}
}

// Orders returns the order ledger.
func (s *Store) Orders() *OrderStore {
	return &OrderStore{sqlDB: s.sqlDB}
}

// ProductStore implements storage.ProductStore on the products table.
type ProductStore struct {
	sqlDB *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (s *ProductStore) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, err := scanProduct(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, price, quantity FROM products WHERE id = ?`, id))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, err
}

func (s *ProductStore) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, price, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (s *ProductStore) Save(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO products (id, name, price, quantity) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   price = excluded.price,
		   quantity = excluded.quantity`,
		p.ID, p.Name, p.Price, p.Quantity,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return p, nil
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return requireRow(res)
}

func scanReservation(row rowScanner) (domain.Reservation, error) {
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

func (s *ProductStore) Reserve(ctx context.Context, orderID, productID string, qty int) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("begin reservation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT order_id, product_id, quantity, status, remaining FROM reservations WHERE order_id = ?`, orderID))
	if err == nil {
		r.Replayed = true
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, fmt.Errorf("read reservation %s: %w", orderID, err)
	}

	var stock int
	err = tx.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = ?`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("read product %s: %w", productID, err)
	}

	r = domain.Reservation{OrderID: orderID, ProductID: productID, Quantity: qty, Status: domain.ReservationRejected}
	if stock >= qty {
		if _, err := tx.ExecContext(ctx, `UPDATE products SET quantity = quantity - ? WHERE id = ?`, qty, productID); err != nil {
			return domain.Reservation{}, fmt.Errorf("decrement product %s: %w", productID, err)
		}
		stock -= qty
		r.Status = domain.ReservationReserved
	}
	r.Remaining = stock

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (order_id, product_id, quantity, status, remaining) VALUES (?, ?, ?, ?, ?)`,
		r.OrderID, r.ProductID, r.Quantity, string(r.Status), r.Remaining,
	); err != nil {
		return domain.Reservation{}, fmt.Errorf("record reservation %s: %w", orderID, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Reservation{}, fmt.Errorf("commit reservation %s: %w", orderID, err)
	}
	return r, nil
}

func (s *ProductStore) MarkRefundRequested(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE order_id = ? AND status = ?`,
		string(domain.ReservationRefundRequested), orderID, string(domain.ReservationRejected),
	)
	if err != nil {
		return fmt.Errorf("mark refund for order %s: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}
	var exists int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM reservations WHERE order_id = ?`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("read reservation %s: %w", orderID, err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// OrderStore implements storage.OrderStore on the orders table.
type OrderStore struct {
	sqlDB *sql.DB
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	var (
		o      domain.Order
		status string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, product_id, price, fee, total, quantity, status FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.ProductID, &o.Price, &o.Fee, &o.Total, &o.Quantity, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	if o.Status, err = domain.ParseOrderStatus(status); err != nil {
		return domain.Order{}, err
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
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO orders (id, product_id, price, fee, total, quantity, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   product_id = excluded.product_id,
		   price = excluded.price,
		   fee = excluded.fee,
		   total = excluded.total,
		   quantity = excluded.quantity,
		   status = excluded.status`,
		o.ID, o.ProductID, o.Price, o.Fee, o.Total, o.Quantity, string(o.Status),
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return o, nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return requireRow(res)
}

func (s *OrderStore) CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update order %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update order %s: %w", id, err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *OrderStore) SetStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin status update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read order %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(to), id); err != nil {
		return "", fmt.Errorf("update order %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit status update: %w", err)
	}
	return domain.ParseOrderStatus(previous)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var (
	_ storage.ProductStore = (*ProductStore)(nil)
	_ storage.OrderStore   = (*OrderStore)(nil)
)
