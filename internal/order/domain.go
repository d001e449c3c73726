// Package order holds the durable receipt of a checkout. Orders are created
// exactly once by the checkout coordinator; line items never change after
// that, and the status only moves forward.
package order

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPlaced     Status = "PLACED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// rank orders the forward path. CANCELLED sits outside the path and is
// reachable from any pre-delivery state.
var rank = map[Status]int{
	StatusPlaced:     0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// CanTransition reports whether moving from s to next respects the
// forward-only state machine.
func (s Status) CanTransition(next Status) bool {
	if next == StatusCancelled {
		return s != StatusDelivered && s != StatusCancelled
	}
	from, okFrom := rank[s]
	to, okTo := rank[next]
	return okFrom && okTo && to > from
}

// Order is immutable once placed, except for forward status transitions
// driven by fulfillment.
type Order struct {
	ID            string
	UserID        string
	AddressID     string
	PaymentMethod string
	PaymentRef    string
	TotalAmount   float64
	Status        Status
	Items         []Item
	CreatedAt     time.Time
}

// Item is a frozen copy of a cart item at the moment of purchase.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice float64
	Discount  float64
}

// Subtotal is this line's contribution to the order total.
func (i Item) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// NotFoundError reports an unknown order id.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("order %q not found", e.ID)
}

// InvalidTransitionError reports a status change that would move backwards
// or revive a terminal order.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %q cannot move from %s to %s", e.ID, e.From, e.To)
}
