package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPlaced, StatusProcessing, true},
		{StatusPlaced, StatusShipped, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPlaced, StatusCancelled, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusCancelled, true},

		// Backwards or repeated moves are refused.
		{StatusShipped, StatusPlaced, false},
		{StatusDelivered, StatusShipped, false},
		{StatusProcessing, StatusProcessing, false},

		// Terminal states stay terminal.
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPlaced, false},
		{StatusCancelled, StatusCancelled, false},

		// Unknown states never transition.
		{Status("BOGUS"), StatusShipped, false},
		{StatusPlaced, Status("BOGUS"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestItemSubtotal(t *testing.T) {
	it := Item{ProductID: "prod_a", Quantity: 3, UnitPrice: 12.5}
	assert.InDelta(t, 37.5, it.Subtotal(), 1e-9)
}
