// Package checkout converts a cart into an order: the one operation in the
// system that needs cross-entity atomicity. A checkout attempt reserves
// every cart item through the inventory ledger, persists the order with
// frozen line items, commits the reservations and clears the cart, all
// inside a single transaction, so no observer ever sees reservations without
// an order or an order without the deducted stock.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rahulrai17/shoply-checkout/internal/cart"
	"github.com/rahulrai17/shoply-checkout/internal/checkout/auditlog"
	"github.com/rahulrai17/shoply-checkout/internal/inventory"
	"github.com/rahulrai17/shoply-checkout/internal/order"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 50 * time.Millisecond
)

// EmptyCartError: the user has no cart or the cart holds no items.
type EmptyCartError struct {
	UserID string
}

func (e EmptyCartError) Error() string {
	return fmt.Sprintf("cart for user %q is empty", e.UserID)
}

// Coordinator orchestrates cart-to-order conversion.
type Coordinator struct {
	db     *sql.DB
	ledger *inventory.Ledger
	carts  *cart.Store
	orders *order.Repository
	audit  auditlog.Repository // nil-safe: logging skipped if nil

	maxAttempts int
	backoff     time.Duration
	tracer      trace.Tracer
	now         func() time.Time
}

// NewCoordinator wires the coordinator. audit may be nil, in which case
// checkout lifecycle transitions are not persisted to the log.
func NewCoordinator(db *sql.DB, ledger *inventory.Ledger, carts *cart.Store, orders *order.Repository, audit auditlog.Repository) *Coordinator {
	return &Coordinator{
		db:          db,
		ledger:      ledger,
		carts:       carts,
		orders:      orders,
		audit:       audit,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		tracer:      otel.Tracer("checkout"),
		now:         time.Now,
	}
}

// attemptResult carries what one transactional attempt produced, so audit
// rows can be written after the transaction has settled. (The store runs a
// single connection; writing the log from inside the transaction would
// deadlock against it.)
type attemptResult struct {
	order       *order.Order
	failedStep  string
	compensated int
}

// PlaceOrder runs the full checkout for the user's cart.
//
// Business failures (EmptyCartError, inventory.InsufficientStockError) leave
// cart and stock bit-for-bit unchanged and are never retried. Transient
// store conflicts are retried a bounded number of times with backoff before
// surfacing.
func (c *Coordinator) PlaceOrder(ctx context.Context, userID, addressID, paymentMethod, paymentRef string) (*order.Order, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.place_order")
	defer span.End()

	// The checkout ID becomes the order ID on success, so the audit log
	// joins directly with business data.
	checkoutID := uuid.NewString()

	c.logEntry(ctx, auditlog.NewEntry(ctx, checkoutID, auditlog.StatusStarted, "", ""))
	slog.InfoContext(ctx, "checkout started", "checkout_id", checkoutID, "user_id", userID)

	var res attemptResult
	var err error
	for attempt := 1; ; attempt++ {
		res, err = c.placeOnce(ctx, checkoutID, userID, addressID, paymentMethod, paymentRef)
		if err == nil || !store.IsBusy(err) || attempt >= c.maxAttempts {
			break
		}
		slog.WarnContext(ctx, "checkout hit transient conflict, retrying",
			"checkout_id", checkoutID, "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * c.backoff)
	}

	if err != nil {
		span.RecordError(err)
		if res.compensated > 0 {
			c.logEntry(ctx, auditlog.NewEntry(ctx, checkoutID, auditlog.StatusCompensating, res.failedStep, err.Error()))
		}
		c.logEntry(ctx, auditlog.NewEntry(ctx, checkoutID, auditlog.StatusFailed, res.failedStep, err.Error()))
		slog.InfoContext(ctx, "checkout failed", "checkout_id", checkoutID, "step", res.failedStep, "error", err)
		return nil, err
	}

	c.logEntry(ctx, auditlog.NewEntry(ctx, checkoutID, auditlog.StatusCompleted, "", ""))
	slog.InfoContext(ctx, "checkout completed",
		"checkout_id", checkoutID, "user_id", userID, "total", res.order.TotalAmount)
	return res.order, nil
}

// placeOnce is one transactional attempt: load cart, reserve every item,
// persist the order, commit reservations, clear the cart. Any failure rolls
// the whole attempt back.
func (c *Coordinator) placeOnce(ctx context.Context, checkoutID, userID, addressID, paymentMethod, paymentRef string) (attemptResult, error) {
	var res attemptResult

	err := store.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		crt, err := c.carts.ItemsForCheckout(ctx, tx, userID)
		if err != nil {
			var nf cart.NotFoundError
			if errors.As(err, &nf) && nf.UserID != "" {
				return EmptyCartError{UserID: userID}
			}
			return err
		}
		if len(crt.Items) == 0 {
			return EmptyCartError{UserID: userID}
		}

		ord := c.freeze(checkoutID, userID, addressID, paymentMethod, paymentRef, crt)

		st := &state{tx: tx, cart: crt, order: ord}
		steps := make([]Step, 0, len(crt.Items)+3)
		for _, it := range crt.Items {
			steps = append(steps, &reserveStep{ledger: c.ledger, st: st, item: it})
		}
		steps = append(steps,
			&createOrderStep{orders: c.orders, st: st},
			&commitReservationsStep{ledger: c.ledger, st: st},
			&clearCartStep{carts: c.carts, st: st},
		)

		failedStep, compensated, err := run(ctx, steps)
		res.failedStep, res.compensated = failedStep, compensated
		if err != nil {
			return err
		}
		res.order = ord
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// freeze copies the cart's line items into an immutable order snapshot.
// Price, discount and quantity are fixed at this instant.
func (c *Coordinator) freeze(checkoutID, userID, addressID, paymentMethod, paymentRef string, crt *cart.Cart) *order.Order {
	items := make([]order.Item, 0, len(crt.Items))
	var total float64
	for _, it := range crt.Items {
		items = append(items, order.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
		})
		total += it.UnitPrice * float64(it.Quantity)
	}
	return &order.Order{
		ID:            checkoutID,
		UserID:        userID,
		AddressID:     addressID,
		PaymentMethod: paymentMethod,
		PaymentRef:    paymentRef,
		TotalAmount:   total,
		Status:        order.StatusPlaced,
		Items:         items,
		CreatedAt:     c.now(),
	}
}

func (c *Coordinator) logEntry(ctx context.Context, e *auditlog.Entry) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Save(ctx, e); err != nil {
		slog.ErrorContext(ctx, "failed to write checkout log", "checkout_id", e.CheckoutID, "error", err)
	}
}
