// Package inventory is the sole authority over product available-quantity.
// Every stock mutation in the system goes through the Ledger; no other
// component is allowed to read-then-write the quantity column.
package inventory

import (
	"errors"
	"fmt"
	"time"
)

// ReservationState tracks the lifecycle of a stock reservation.
type ReservationState string

const (
	// StateHeld means the quantity has been decremented but the checkout
	// holding the reservation has not finished yet.
	StateHeld ReservationState = "HELD"
	// StateCommitted means the decrement is final.
	StateCommitted ReservationState = "COMMITTED"
	// StateReleased means the quantity was returned to stock.
	StateReleased ReservationState = "RELEASED"
)

// Reservation is a claim against a product's quantity. The decrement happens
// at reserve time; Commit and Release only record the outcome.
type Reservation struct {
	Token     string
	ProductID string
	Quantity  int
	State     ReservationState
	CreatedAt time.Time
	ExpiresAt time.Time
}

// InsufficientStockError is a normal, expected outcome of TryReserve: the
// product exists but cannot cover the requested quantity. It carries enough
// detail for the caller to act without string matching.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ErrReservationClosed reports a Release or Commit against a reservation that
// is no longer HELD. Callers for whom a closed reservation is a fine outcome
// (the sweeper, checkout rollback) may ignore it; anything else hitting it is
// a logic error.
var ErrReservationClosed = errors.New("inventory: reservation already committed or released")
