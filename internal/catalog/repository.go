package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// Repository provides typed access to product rows. Callers pass the unit of
// work explicitly: the plain *sql.DB for standalone reads, or the enclosing
// *sql.Tx when the read must be consistent with other writes.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Get loads a single product by id.
func (r *Repository) Get(ctx context.Context, q store.Querier, id string) (*Product, error) {
	const query = `SELECT id, name, price, discount, quantity FROM products WHERE id = ?`

	var p Product
	err := q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Discount, &p.Quantity)
	if err == sql.ErrNoRows {
		return nil, NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %q: %w", id, err)
	}
	return &p, nil
}

// Upsert creates or replaces a product row. Used when the catalog pushes a
// new or changed product, and by tests to seed stock.
func (r *Repository) Upsert(ctx context.Context, q store.Querier, p *Product) error {
	const query = `
		INSERT INTO products (id, name, price, discount, quantity)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			discount = excluded.discount,
			quantity = excluded.quantity`

	if _, err := q.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.Discount, p.Quantity); err != nil {
		return fmt.Errorf("catalog: upsert product %q: %w", p.ID, err)
	}
	return nil
}

// SetPricing updates list price and discount without touching quantity.
// Quantity belongs to the ledger.
func (r *Repository) SetPricing(ctx context.Context, q store.Querier, id string, price, discount float64) error {
	const query = `UPDATE products SET price = ?, discount = ? WHERE id = ?`

	res, err := q.ExecContext(ctx, query, price, discount, id)
	if err != nil {
		return fmt.Errorf("catalog: set pricing for %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: set pricing for %q: %w", id, err)
	}
	if n == 0 {
		return NotFoundError{ID: id}
	}
	return nil
}
