package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rahulrai17/shoply-checkout/internal/catalog"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// Store is the cart repository. Each public mutation runs in its own short
// transaction; the checkout coordinator instead calls the Querier-taking
// methods (ItemsForCheckout, ClearItems) inside its own transaction.
type Store struct {
	db       *sql.DB
	products *catalog.Repository
	advisor  StockAdvisor // may be nil
	now      func() time.Time
}

func NewStore(db *sql.DB, products *catalog.Repository, advisor StockAdvisor) *Store {
	return &Store{db: db, products: products, advisor: advisor, now: time.Now}
}

// AddItem puts a product into the user's cart, creating the cart lazily.
// Fails with DuplicateItemError if the product is already present and with
// UnavailableError if the advisory stock snapshot cannot cover the quantity.
func (s *Store) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, InvalidQuantityError{ProductID: productID, Resulting: quantity}
	}
	if err := s.checkAdvisory(ctx, s.db, productID, quantity); err != nil {
		return nil, err
	}

	var out *Cart
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.getOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}

		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cart_items WHERE cart_id = ? AND product_id = ?`,
			c.ID, productID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("cart: check duplicate: %w", err)
		}
		if exists > 0 {
			return DuplicateItemError{ProductID: productID}
		}

		p, err := s.products.Get(ctx, tx, productID)
		if err != nil {
			return err
		}

		unitPrice := p.SpecialPrice()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, discount, added_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, productID, quantity, unitPrice, p.Discount, store.FormatTime(s.now()))
		if err != nil {
			return fmt.Errorf("cart: insert item: %w", err)
		}

		if err := s.shiftTotal(ctx, tx, c.ID, unitPrice*float64(quantity)); err != nil {
			return err
		}

		out, err = s.load(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateItemQuantity applies a signed delta to an existing line item.
// A resulting quantity of zero removes the item; a negative result fails
// with InvalidQuantityError. Increases re-check the advisory snapshot.
func (s *Store) UpdateItemQuantity(ctx context.Context, userID, productID string, delta int) (*Cart, error) {
	var out *Cart
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.byUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		var current int
		var unitPrice float64
		err = tx.QueryRowContext(ctx,
			`SELECT quantity, unit_price FROM cart_items WHERE cart_id = ? AND product_id = ?`,
			c.ID, productID).Scan(&current, &unitPrice)
		if err == sql.ErrNoRows {
			return NotFoundError{CartID: c.ID, ProductID: productID}
		}
		if err != nil {
			return fmt.Errorf("cart: load item: %w", err)
		}

		next := current + delta
		if next < 0 {
			return InvalidQuantityError{ProductID: productID, Resulting: next}
		}

		if delta > 0 {
			if err := s.checkAdvisory(ctx, tx, productID, next); err != nil {
				return err
			}
		}

		if next == 0 {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, c.ID, productID)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND product_id = ?`,
				next, c.ID, productID)
		}
		if err != nil {
			return fmt.Errorf("cart: update item: %w", err)
		}

		if err := s.shiftTotal(ctx, tx, c.ID, unitPrice*float64(delta)); err != nil {
			return err
		}

		out, err = s.load(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem deletes a line item from the given cart.
func (s *Store) RemoveItem(ctx context.Context, cartID, productID string) error {
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var quantity int
		var unitPrice float64
		err := tx.QueryRowContext(ctx,
			`SELECT quantity, unit_price FROM cart_items WHERE cart_id = ? AND product_id = ?`,
			cartID, productID).Scan(&quantity, &unitPrice)
		if err == sql.ErrNoRows {
			return NotFoundError{CartID: cartID, ProductID: productID}
		}
		if err != nil {
			return fmt.Errorf("cart: load item: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID)
		if err != nil {
			return fmt.Errorf("cart: delete item: %w", err)
		}

		return s.shiftTotal(ctx, tx, cartID, -unitPrice*float64(quantity))
	})
}

// GetCart returns the user's cart with items.
func (s *Store) GetCart(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.byUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, c.ID)
}

// ListAll returns every cart in the system. Admin projection.
func (s *Store) ListAll(ctx context.Context) ([]*Cart, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM carts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("cart: list carts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cart: scan cart id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart: list carts: %w", err)
	}

	carts := make([]*Cart, 0, len(ids))
	for _, id := range ids {
		c, err := s.load(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		carts = append(carts, c)
	}
	return carts, nil
}

// Reprice refreshes one line item's price snapshot from the current catalog
// price and recomputes the cached total from scratch. Invoked on catalog
// price-change events; eventual consistency, not tied to the price change
// transactionally.
func (s *Store) Reprice(ctx context.Context, cartID, productID string) error {
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := s.products.Get(ctx, tx, productID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET unit_price = ?, discount = ? WHERE cart_id = ? AND product_id = ?`,
			p.SpecialPrice(), p.Discount, cartID, productID)
		if err != nil {
			return fmt.Errorf("cart: reprice item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cart: reprice item: %w", err)
		}
		if n == 0 {
			return NotFoundError{CartID: cartID, ProductID: productID}
		}

		// The snapshot changed under the cached total; rebuild it rather
		// than shifting, so reconciliation cannot compound drift.
		_, err = tx.ExecContext(ctx, `
			UPDATE carts SET total_price = COALESCE((
				SELECT SUM(quantity * unit_price) FROM cart_items WHERE cart_id = ?
			), 0), updated_at = ? WHERE id = ?`,
			cartID, store.FormatTime(s.now()), cartID)
		if err != nil {
			return fmt.Errorf("cart: rebuild total: %w", err)
		}
		return nil
	})
}

// CartsContaining lists ids of carts that hold the given product. Used by
// the catalog listener to fan a price change out to Reprice.
func (s *Store) CartsContaining(ctx context.Context, productID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cart_id FROM cart_items WHERE product_id = ?`, productID)
	if err != nil {
		return nil, fmt.Errorf("cart: carts containing %q: %w", productID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cart: scan cart id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ItemsForCheckout loads the user's cart with items through the caller's
// unit of work, so checkout sees a state consistent with its reservations.
func (s *Store) ItemsForCheckout(ctx context.Context, q store.Querier, userID string) (*Cart, error) {
	c, err := s.byUser(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, q, c.ID)
}

// ClearItems empties the cart and zeroes its cached total. The cart row
// itself survives checkout.
func (s *Store) ClearItems(ctx context.Context, q store.Querier, cartID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return fmt.Errorf("cart: clear items: %w", err)
	}
	_, err := q.ExecContext(ctx,
		`UPDATE carts SET total_price = 0, updated_at = ? WHERE id = ?`,
		store.FormatTime(s.now()), cartID)
	if err != nil {
		return fmt.Errorf("cart: zero total: %w", err)
	}
	return nil
}

// checkAdvisory runs the soft availability check through the caller's unit
// of work. Callers holding a transaction must pass it: the advisor's DB
// fallback would otherwise queue behind the transaction's own connection.
func (s *Store) checkAdvisory(ctx context.Context, q store.Querier, productID string, want int) error {
	if s.advisor == nil {
		return nil
	}
	available, ok := s.advisor.Available(ctx, q, productID)
	if ok && want > available {
		return UnavailableError{ProductID: productID, Requested: want, Available: available}
	}
	return nil
}

func (s *Store) getOrCreate(ctx context.Context, q store.Querier, userID string) (*Cart, error) {
	c, err := s.byUser(ctx, q, userID)
	if err == nil {
		return c, nil
	}
	var notFound NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	now := s.now()
	c = &Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	_, err = q.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, total_price, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		c.ID, userID, store.FormatTime(now), store.FormatTime(now))
	if err != nil {
		return nil, fmt.Errorf("cart: create cart for %q: %w", userID, err)
	}
	return c, nil
}

func (s *Store) byUser(ctx context.Context, q store.Querier, userID string) (*Cart, error) {
	var c Cart
	var createdAt, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, total_price, created_at, updated_at FROM carts WHERE user_id = ?`,
		userID).Scan(&c.ID, &c.UserID, &c.TotalPrice, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, NotFoundError{UserID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("cart: load cart for %q: %w", userID, err)
	}
	if c.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = store.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) load(ctx context.Context, q store.Querier, cartID string) (*Cart, error) {
	var c Cart
	var createdAt, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, total_price, created_at, updated_at FROM carts WHERE id = ?`,
		cartID).Scan(&c.ID, &c.UserID, &c.TotalPrice, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, NotFoundError{CartID: cartID}
	}
	if err != nil {
		return nil, fmt.Errorf("cart: load cart %q: %w", cartID, err)
	}
	if c.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = store.ParseTime(updatedAt); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, discount, added_at
		FROM cart_items WHERE cart_id = ? ORDER BY added_at, product_id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart: load items of %q: %w", cartID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		var addedAt string
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.Discount, &addedAt); err != nil {
			return nil, fmt.Errorf("cart: scan item: %w", err)
		}
		if it.AddedAt, err = store.ParseTime(addedAt); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart: load items of %q: %w", cartID, err)
	}
	return &c, nil
}

func (s *Store) shiftTotal(ctx context.Context, q store.Querier, cartID string, delta float64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE carts SET total_price = total_price + ?, updated_at = ? WHERE id = ?`,
		delta, store.FormatTime(s.now()), cartID)
	if err != nil {
		return fmt.Errorf("cart: shift total: %w", err)
	}
	return nil
}
