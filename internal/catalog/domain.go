// Package catalog is the adapter to the catalog collaborator: it owns the
// product rows this engine reads and receives restock / price-change
// notifications. Stock mutations never happen here directly; they are routed
// through the inventory ledger.
package catalog

import "fmt"

// Product is the inventory-bearing entity as supplied by the catalog.
type Product struct {
	ID       string
	Name     string
	Price    float64
	Discount float64 // percentage, 0..100
	Quantity int
}

// SpecialPrice is the effective unit price after discount.
func (p Product) SpecialPrice() float64 {
	return p.Price - p.Price*p.Discount/100
}

// NotFoundError reports a product id unknown to the catalog.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.ID)
}
