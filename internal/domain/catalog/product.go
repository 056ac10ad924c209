package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ProductID is the upstream identifier of a product
type ProductID int64

// String returns the decimal form of the id
func (id ProductID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// DefaultLowStockThreshold is the stock level below which a product is
// flagged to the operator.
const DefaultLowStockThreshold = 10

// Product is a sellable item as seen by the point of sale.
// It is read-only; a fresh copy arrives with every catalog load.
type Product struct {
	ID             ProductID
	Name           string
	Packaging      string
	UnitPrice      decimal.Decimal
	AvailableStock int
}

// IsLowStock reports whether the product's stock is below threshold
func (p Product) IsLowStock(threshold int) bool {
	return p.AvailableStock < threshold
}

// InStock reports whether at least one unit can be sold
func (p Product) InStock() bool {
	return p.AvailableStock > 0
}

func (p Product) validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("product %q: %w", p.Name, ErrInvalidProductID)
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf("product %d: %w", p.ID, ErrNegativePrice)
	}
	if p.AvailableStock < 0 {
		return fmt.Errorf("product %d: %w", p.ID, ErrNegativeStock)
	}
	return nil
}
