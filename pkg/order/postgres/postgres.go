// Package postgres persists orders in PostgreSQL, the system's durable
// source of truth for order state.
package postgres

import (
	"context"
	"database/sql"

	"truckflow/pkg/order"
)

// Schema is the orders table this repository expects.
const Schema = `CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	vendor_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	items JSONB,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// Repository persists orders in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new order.
func (r *Repository) Create(ctx context.Context, o order.Order) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO orders (id,vendor_id,customer_id,items,status,created_at) VALUES ($1,$2,$3,$4,$5,$6)",
		o.ID, o.VendorID, o.CustomerID, []byte(o.Items), o.Status, o.CreatedAt)
	return err
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	var o order.Order
	var items []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT id,vendor_id,customer_id,items,status,created_at FROM orders WHERE id=$1", id).
		Scan(&o.ID, &o.VendorID, &o.CustomerID, &items, &o.Status, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return order.Order{}, order.ErrNotFound
	}
	o.Items = items
	return o, err
}

// ListByParticipant fetches the participant's orders, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, participantID string) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,vendor_id,customer_id,items,status,created_at FROM orders WHERE vendor_id=$1 OR customer_id=$1 ORDER BY created_at DESC",
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []order.Order
	for rows.Next() {
		var o order.Order
		var items []byte
		if err := rows.Scan(&o.ID, &o.VendorID, &o.CustomerID, &items, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Items = items
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateStatus moves the order from one status to another. The status guard
// in the WHERE clause makes concurrent transitions lose cleanly instead of
// overwriting each other.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status=$3 WHERE id=$1 AND status=$2", id, from, to)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)", id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrStaleStatus
	}
	return nil
}
