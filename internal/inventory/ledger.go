package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rahulrai17/shoply-checkout/internal/catalog"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// DefaultHoldTTL bounds how long a HELD reservation may outlive its checkout
// before the sweeper reclaims it. Normal checkouts commit or release within
// milliseconds; the TTL only matters after a crash mid-checkout.
const DefaultHoldTTL = 2 * time.Minute

// Ledger implements the reserve/release/commit protocol over the product and
// reservation tables. Methods take an explicit store.Querier so that a
// checkout can run the whole protocol inside one transaction while the
// sweeper and restock paths use the plain DB handle.
//
// Atomicity of the check-then-decrement comes from the guarded UPDATE:
// quantity is only decremented where it still covers the request, and the
// rows-affected count tells us whether we won. Two racing reservations for
// the last unit therefore resolve to exactly one winner.
type Ledger struct {
	holdTTL time.Duration
	now     func() time.Time
}

func NewLedger(holdTTL time.Duration) *Ledger {
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	return &Ledger{holdTTL: holdTTL, now: time.Now}
}

// TryReserve atomically checks and decrements the product's quantity.
// On success it returns a HELD reservation; on shortfall it returns
// InsufficientStockError with the quantity that was actually available,
// leaving stock untouched.
func (l *Ledger) TryReserve(ctx context.Context, q store.Querier, productID string, amount int) (*Reservation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("inventory: reserve amount must be positive, got %d", amount)
	}

	const decrement = `UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`

	res, err := q.ExecContext(ctx, decrement, amount, productID, amount)
	if err != nil {
		return nil, fmt.Errorf("inventory: reserve %d of %q: %w", amount, productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("inventory: reserve %d of %q: %w", amount, productID, err)
	}
	if n == 0 {
		// Lost the race or the product never had enough. Distinguish
		// missing product from shortfall for the caller.
		available, err := l.available(ctx, q, productID)
		if err != nil {
			return nil, err
		}
		return nil, InsufficientStockError{ProductID: productID, Requested: amount, Available: available}
	}

	now := l.now()
	r := &Reservation{
		Token:     uuid.NewString(),
		ProductID: productID,
		Quantity:  amount,
		State:     StateHeld,
		CreatedAt: now,
		ExpiresAt: now.Add(l.holdTTL),
	}

	const insert = `
		INSERT INTO reservations (token, product_id, quantity, state, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = q.ExecContext(ctx, insert,
		r.Token, r.ProductID, r.Quantity, string(r.State),
		store.FormatTime(r.CreatedAt), store.FormatTime(r.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("inventory: record reservation for %q: %w", productID, err)
	}

	return r, nil
}

// Release returns a held reservation's quantity to stock. Idempotent: a
// second release (or a release after commit) reports ErrReservationClosed
// and does not touch the quantity again.
func (l *Ledger) Release(ctx context.Context, q store.Querier, token string) error {
	const close_ = `UPDATE reservations SET state = ? WHERE token = ? AND state = ?`

	res, err := q.ExecContext(ctx, close_, string(StateReleased), token, string(StateHeld))
	if err != nil {
		return fmt.Errorf("inventory: release %q: %w", token, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: release %q: %w", token, err)
	}
	if n == 0 {
		return ErrReservationClosed
	}

	// We won the state transition, so exactly one caller restores the stock.
	const restore = `
		UPDATE products SET quantity = quantity + (
			SELECT quantity FROM reservations WHERE token = ?
		) WHERE id = (
			SELECT product_id FROM reservations WHERE token = ?
		)`

	if _, err := q.ExecContext(ctx, restore, token, token); err != nil {
		return fmt.Errorf("inventory: restore stock for %q: %w", token, err)
	}
	return nil
}

// Commit finalizes a held reservation. The quantity was already deducted at
// reserve time; this marks the deduction non-reversible for bookkeeping.
func (l *Ledger) Commit(ctx context.Context, q store.Querier, token string) error {
	const query = `UPDATE reservations SET state = ? WHERE token = ? AND state = ?`

	res, err := q.ExecContext(ctx, query, string(StateCommitted), token, string(StateHeld))
	if err != nil {
		return fmt.Errorf("inventory: commit %q: %w", token, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: commit %q: %w", token, err)
	}
	if n == 0 {
		return ErrReservationClosed
	}
	return nil
}

// AdjustStock applies a signed correction from the catalog (restock or
// shrinkage). The guarded UPDATE serializes with concurrent reservations on
// the same product and refuses adjustments that would drive quantity negative.
func (l *Ledger) AdjustStock(ctx context.Context, q store.Querier, productID string, delta int) error {
	const query = `UPDATE products SET quantity = quantity + ? WHERE id = ? AND quantity + ? >= 0`

	res, err := q.ExecContext(ctx, query, delta, productID, delta)
	if err != nil {
		return fmt.Errorf("inventory: adjust %q by %d: %w", productID, delta, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: adjust %q by %d: %w", productID, delta, err)
	}
	if n == 0 {
		available, err := l.available(ctx, q, productID)
		if err != nil {
			return err
		}
		return InsufficientStockError{ProductID: productID, Requested: -delta, Available: available}
	}
	return nil
}

// Available reads the current available quantity. Advisory only: callers
// must not make decisions on it outside a reservation.
func (l *Ledger) Available(ctx context.Context, q store.Querier, productID string) (int, error) {
	return l.available(ctx, q, productID)
}

func (l *Ledger) available(ctx context.Context, q store.Querier, productID string) (int, error) {
	const query = `SELECT quantity FROM products WHERE id = ?`

	var quantity int
	err := q.QueryRowContext(ctx, query, productID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, catalog.NotFoundError{ID: productID}
	}
	if err != nil {
		return 0, fmt.Errorf("inventory: read quantity of %q: %w", productID, err)
	}
	return quantity, nil
}

// Get loads a reservation by token. Used by tests and the sweeper.
func (l *Ledger) Get(ctx context.Context, q store.Querier, token string) (*Reservation, error) {
	const query = `
		SELECT token, product_id, quantity, state, created_at, expires_at
		FROM reservations WHERE token = ?`

	var r Reservation
	var state, createdAt, expiresAt string
	err := q.QueryRowContext(ctx, query, token).Scan(
		&r.Token, &r.ProductID, &r.Quantity, &state, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory: reservation %q not found", token)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: get reservation %q: %w", token, err)
	}

	r.State = ReservationState(state)
	if r.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if r.ExpiresAt, err = store.ParseTime(expiresAt); err != nil {
		return nil, err
	}
	return &r, nil
}
