package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// Repository persists orders. Create takes the caller's Querier because
// order creation only ever happens inside the checkout transaction; reads
// and status updates run against the plain DB handle.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the order and its frozen line items.
func (r *Repository) Create(ctx context.Context, q store.Querier, o *Order) error {
	const insertOrder = `
		INSERT INTO orders (id, user_id, address_id, payment_method, payment_ref, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, insertOrder,
		o.ID, o.UserID, o.AddressID, o.PaymentMethod, o.PaymentRef,
		o.TotalAmount, string(o.Status), store.FormatTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("order: insert %q: %w", o.ID, err)
	}

	const insertItem = `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, discount)
		VALUES (?, ?, ?, ?, ?)`

	for _, it := range o.Items {
		if _, err := q.ExecContext(ctx, insertItem,
			o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.Discount); err != nil {
			return fmt.Errorf("order: insert item of %q: %w", o.ID, err)
		}
	}
	return nil
}

// Get loads an order with its items.
func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	const query = `
		SELECT id, user_id, address_id, payment_method, payment_ref, total_amount, status, created_at
		FROM orders WHERE id = ?`

	var o Order
	var status, createdAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.PaymentMethod, &o.PaymentRef,
		&o.TotalAmount, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("order: get %q: %w", id, err)
	}
	o.Status = Status(status)
	if o.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, discount
		FROM order_items WHERE order_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("order: items of %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.Discount); err != nil {
			return nil, fmt.Errorf("order: scan item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: items of %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first. Items are not loaded.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, address_id, payment_method, payment_ref, total_amount, status, created_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("order: list for %q: %w", userID, err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		var o Order
		var status, createdAt string
		if err := rows.Scan(&o.ID, &o.UserID, &o.AddressID, &o.PaymentMethod, &o.PaymentRef,
			&o.TotalAmount, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("order: scan order: %w", err)
		}
		o.Status = Status(status)
		if o.CreatedAt, err = store.ParseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// UpdateStatus applies a fulfillment transition, enforcing the forward-only
// machine. The guarded UPDATE re-checks the current status so concurrent
// transitions cannot leapfrog each other.
func (r *Repository) UpdateStatus(ctx context.Context, id string, next Status) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return NotFoundError{ID: id}
		}
		if err != nil {
			return fmt.Errorf("order: read status of %q: %w", id, err)
		}

		from := Status(current)
		if !from.CanTransition(next) {
			return InvalidTransitionError{ID: id, From: from, To: next}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
			string(next), id, current)
		if err != nil {
			return fmt.Errorf("order: update status of %q: %w", id, err)
		}
		return nil
	})
}
