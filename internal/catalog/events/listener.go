// Package events receives the catalog collaborator's notifications, restocks
// and price changes, and routes them through the components that
// own the affected state: the inventory ledger for quantity, the cart store
// for price snapshots, the advisory cache for invalidation.
package events

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/rahulrai17/shoply-checkout/internal/cart"
	"github.com/rahulrai17/shoply-checkout/internal/catalog"
	"github.com/rahulrai17/shoply-checkout/internal/inventory"
)

type Listener struct {
	db        *sql.DB
	products  *catalog.Repository
	ledger    *inventory.Ledger
	carts     *cart.Store
	snapshots *catalog.StockSnapshot // may be nil
}

func NewListener(db *sql.DB, products *catalog.Repository, ledger *inventory.Ledger, carts *cart.Store, snapshots *catalog.StockSnapshot) *Listener {
	return &Listener{db: db, products: products, ledger: ledger, carts: carts, snapshots: snapshots}
}

// HandleRestock applies a signed stock correction. The mutation goes through
// the ledger, never directly at the quantity column, so it serializes with
// concurrent reservations.
func (l *Listener) HandleRestock(ctx context.Context, productID string, delta int) error {
	if err := l.ledger.AdjustStock(ctx, l.db, productID, delta); err != nil {
		return err
	}
	if l.snapshots != nil {
		l.snapshots.Invalidate(ctx, productID)
	}
	slog.InfoContext(ctx, "stock adjusted", "product_id", productID, "delta", delta)
	return nil
}

// HandlePriceChange updates the catalog price and fans the change out to
// every cart holding the product. Cart repricing is eventual-consistency
// reconciliation: each cart is fixed in its own transaction, and a failure
// on one cart does not abort the rest.
func (l *Listener) HandlePriceChange(ctx context.Context, productID string, price, discount float64) error {
	if err := l.products.SetPricing(ctx, l.db, productID, price, discount); err != nil {
		return err
	}
	if l.snapshots != nil {
		l.snapshots.Invalidate(ctx, productID)
	}

	cartIDs, err := l.carts.CartsContaining(ctx, productID)
	if err != nil {
		return err
	}

	var failed int
	for _, cartID := range cartIDs {
		if err := l.carts.Reprice(ctx, cartID, productID); err != nil {
			failed++
			slog.WarnContext(ctx, "cart reprice failed",
				"cart_id", cartID, "product_id", productID, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("events: price change for %q: %d of %d carts not repriced",
			productID, failed, len(cartIDs))
	}

	slog.InfoContext(ctx, "price change applied",
		"product_id", productID, "price", price, "discount", discount, "carts", len(cartIDs))
	return nil
}
