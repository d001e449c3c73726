package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rahulrai17/shoply-checkout/internal/cart"
	"github.com/rahulrai17/shoply-checkout/internal/inventory"
	"github.com/rahulrai17/shoply-checkout/internal/order"
)

// Step represents a single unit of work in a checkout attempt.
// Each step must have a compensating action to undo its effects.
//
// All steps of one attempt share the same transaction, so the database
// rollback is the outer safety net; compensation exists so that a
// mid-sequence failure explicitly releases acquired reservations in reverse
// order before the transaction unwinds.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// run executes steps sequentially. If a step fails, it triggers the
// compensation of all previously successful steps (LIFO) and reports which
// step failed and how many compensations ran.
func run(ctx context.Context, steps []Step) (failedStep string, compensated int, err error) {
	var successful []Step

	for _, step := range steps {
		if stepErr := step.Execute(ctx); stepErr != nil {
			slog.InfoContext(ctx, "checkout step failed, rolling back",
				"step", step.Name(), "error", stepErr)
			for i := len(successful) - 1; i >= 0; i-- {
				s := successful[i]
				if cerr := s.Compensate(ctx); cerr != nil {
					slog.ErrorContext(ctx, "CRITICAL: failed to compensate checkout step",
						"step", s.Name(), "error", cerr)
				} else {
					compensated++
				}
			}
			return step.Name(), compensated, stepErr
		}
		successful = append(successful, step)
	}
	return "", 0, nil
}

// state is the attempt-scoped data the steps share.
type state struct {
	tx           *sql.Tx
	cart         *cart.Cart
	order        *order.Order
	reservations []*inventory.Reservation
}

// --- reserveStep ---

// reserveStep claims stock for one cart item. This is the authoritative
// stock check; the cart's advisory check has no bearing here.
type reserveStep struct {
	ledger *inventory.Ledger
	st     *state
	item   cart.Item
	token  string
}

func (s *reserveStep) Name() string {
	return fmt.Sprintf("Reserve_Stock[%s]", s.item.ProductID)
}

func (s *reserveStep) Execute(ctx context.Context) error {
	r, err := s.ledger.TryReserve(ctx, s.st.tx, s.item.ProductID, s.item.Quantity)
	if err != nil {
		return err
	}
	s.token = r.Token
	s.st.reservations = append(s.st.reservations, r)
	return nil
}

func (s *reserveStep) Compensate(ctx context.Context) error {
	err := s.ledger.Release(ctx, s.st.tx, s.token)
	if errors.Is(err, inventory.ErrReservationClosed) {
		// Already settled elsewhere; releasing twice must not restock twice.
		return nil
	}
	return err
}

// --- createOrderStep ---

type createOrderStep struct {
	orders *order.Repository
	st     *state
}

func (s *createOrderStep) Name() string { return "Create_Order" }

func (s *createOrderStep) Execute(ctx context.Context) error {
	if err := s.orders.Create(ctx, s.st.tx, s.st.order); err != nil {
		return fmt.Errorf("checkout: persist order: %w", err)
	}
	return nil
}

// Compensate is a no-op: the shared transaction's rollback discards the rows.
func (s *createOrderStep) Compensate(ctx context.Context) error { return nil }

// --- commitReservationsStep ---

// commitReservationsStep marks every held reservation final. The quantity
// decrement already happened at reserve time; after this step no sweep or
// release can hand the stock back.
type commitReservationsStep struct {
	ledger *inventory.Ledger
	st     *state
}

func (s *commitReservationsStep) Name() string { return "Commit_Reservations" }

func (s *commitReservationsStep) Execute(ctx context.Context) error {
	for _, r := range s.st.reservations {
		if err := s.ledger.Commit(ctx, s.st.tx, r.Token); err != nil {
			return fmt.Errorf("checkout: commit reservation %s: %w", r.Token, err)
		}
	}
	return nil
}

func (s *commitReservationsStep) Compensate(ctx context.Context) error { return nil }

// --- clearCartStep ---

// clearCartStep empties the cart's items and zeroes its cached total. The
// cart row itself persists across checkouts.
type clearCartStep struct {
	carts *cart.Store
	st    *state
}

func (s *clearCartStep) Name() string { return "Clear_Cart" }

func (s *clearCartStep) Execute(ctx context.Context) error {
	return s.carts.ClearItems(ctx, s.st.tx, s.st.cart.ID)
}

func (s *clearCartStep) Compensate(ctx context.Context) error { return nil }
