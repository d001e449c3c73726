// Package cart owns a user's pending line items. It never mutates inventory:
// the only stock awareness here is an advisory snapshot surfaced to the UI;
// the authoritative check happens at checkout via the inventory ledger.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// Cart accumulates line items for one user. TotalPrice is a cached value
// maintained incrementally on every mutation; it always equals
// sum(item.UnitPrice * item.Quantity).
type Cart struct {
	ID         string
	UserID     string
	Items      []Item
	TotalPrice float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item is one line in a cart. UnitPrice and Discount are snapshots taken
// when the item was added (or last repriced), not live catalog values.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice float64
	Discount  float64
	AddedAt   time.Time
}

// StockAdvisor supplies best-effort availability snapshots for the soft
// add-time check. ok=false means no snapshot could be obtained and the
// check is skipped; checkout will do the authoritative one anyway.
//
// Reads go through the caller's Querier: an advisor consulted inside an open
// transaction must not reach for the shared *sql.DB, whose single connection
// that transaction already holds.
type StockAdvisor interface {
	Available(ctx context.Context, q store.Querier, productID string) (available int, ok bool)
}

// DuplicateItemError: the product is already in the cart. Policy: re-adding
// goes through the quantity-update path, not add.
type DuplicateItemError struct {
	ProductID string
}

func (e DuplicateItemError) Error() string {
	return fmt.Sprintf("product %q is already in the cart", e.ProductID)
}

// UnavailableError: the advisory stock snapshot cannot cover the request.
type UnavailableError struct {
	ProductID string
	Requested int
	Available int
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("product %q appears unavailable: requested %d, about %d in stock",
		e.ProductID, e.Requested, e.Available)
}

// InvalidQuantityError: a non-positive add, or a delta that would drive an
// item's quantity negative.
type InvalidQuantityError struct {
	ProductID string
	Resulting int
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %q", e.Resulting, e.ProductID)
}

// NotFoundError: the cart, or a line item within it, does not exist.
type NotFoundError struct {
	UserID    string
	CartID    string
	ProductID string
}

func (e NotFoundError) Error() string {
	switch {
	case e.ProductID != "" && e.CartID != "":
		return fmt.Sprintf("cart %q has no item for product %q", e.CartID, e.ProductID)
	case e.CartID != "":
		return fmt.Sprintf("cart %q not found", e.CartID)
	default:
		return fmt.Sprintf("no cart for user %q", e.UserID)
	}
}
