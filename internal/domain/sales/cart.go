package sales

import (
	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CartLine is one product in the cart. UnitPrice is captured when the
// product is first added and is never re-read from the catalog.
type CartLine struct {
	ProductID   catalog.ProductID
	ProductName string
	Packaging   string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal returns Quantity × UnitPrice without rounding
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Amount().Amount()
}

// Amount is the line subtotal as Money
func (l CartLine) Amount() valueobject.Money {
	return valueobject.NewMoneyBRL(l.UnitPrice).MultiplyByInt(int64(l.Quantity))
}

// AdjustmentReason explains why Rebind changed a line
type AdjustmentReason string

const (
	AdjustmentProductRemoved  AdjustmentReason = "PRODUCT_REMOVED"
	AdjustmentQuantityClamped AdjustmentReason = "QUANTITY_CLAMPED"
	AdjustmentOutOfStock      AdjustmentReason = "OUT_OF_STOCK"
)

// LineAdjustment records a change Rebind made to one line
type LineAdjustment struct {
	ProductID   catalog.ProductID
	ProductName string
	Reason      AdjustmentReason
	OldQuantity int
	NewQuantity int
}

// Cart is an insertion-ordered set of lines, at most one per product.
// Every line's quantity stays within the product's stock in the cart's snapshot.
type Cart struct {
	snapshot *catalog.Snapshot
	lines    []CartLine
}

// NewCart creates an empty cart bound to a catalog snapshot
func NewCart(snapshot *catalog.Snapshot) *Cart {
	if snapshot == nil {
		snapshot = catalog.EmptySnapshot()
	}
	return &Cart{snapshot: snapshot}
}

// Snapshot returns the catalog the cart validates against
func (c *Cart) Snapshot() *catalog.Snapshot {
	return c.snapshot
}

// AddLine adds quantity units of a product, merging into an existing line.
// A failed call leaves the cart unchanged.
func (c *Cart) AddLine(productID catalog.ProductID, quantity int) error {
	product, ok := c.snapshot.Product(productID)
	if !ok {
		return ErrProductNotFound
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	idx := c.indexOf(productID)
	resulting := quantity
	if idx >= 0 {
		resulting += c.lines[idx].Quantity
	}
	if resulting > product.AvailableStock {
		return &StockError{
			ProductID: productID,
			Requested: resulting,
			Available: product.AvailableStock,
		}
	}

	if idx >= 0 {
		c.lines[idx].Quantity = resulting
		return nil
	}
	c.lines = append(c.lines, CartLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		Packaging:   product.Packaging,
		Quantity:    quantity,
		UnitPrice:   product.UnitPrice,
	})
	return nil
}

// SetLineQuantity overwrites the quantity of an existing line.
// A quantity of zero or less removes the line.
func (c *Cart) SetLineQuantity(productID catalog.ProductID, quantity int) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrLineNotFound
	}
	if quantity <= 0 {
		c.removeAt(idx)
		return nil
	}

	available := 0
	if product, ok := c.snapshot.Product(productID); ok {
		available = product.AvailableStock
	}
	if quantity > available {
		return &StockError{
			ProductID: productID,
			Requested: quantity,
			Available: available,
		}
	}

	c.lines[idx].Quantity = quantity
	return nil
}

// RemoveLine removes the line for a product; absent products are ignored
func (c *Cart) RemoveLine(productID catalog.ProductID) {
	if idx := c.indexOf(productID); idx >= 0 {
		c.removeAt(idx)
	}
}

// Line returns the line for a product
func (c *Cart) Line(productID catalog.ProductID) (CartLine, bool) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return CartLine{}, false
	}
	return c.lines[idx], true
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty returns true if the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// TotalQuantity returns the sum of all line quantities
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

// Clear removes every line
func (c *Cart) Clear() {
	c.lines = nil
}

// Clone returns an independent copy sharing the same snapshot
func (c *Cart) Clone() *Cart {
	return &Cart{
		snapshot: c.snapshot,
		lines:    c.Lines(),
	}
}

// Rebind moves the cart onto a freshly loaded snapshot and restores the
// stock invariant against it. Lines whose product disappeared are dropped,
// lines above the new stock are clamped, and lines whose product is now out
// of stock are dropped. Captured prices are kept.
func (c *Cart) Rebind(snapshot *catalog.Snapshot) []LineAdjustment {
	if snapshot == nil {
		snapshot = catalog.EmptySnapshot()
	}

	var adjustments []LineAdjustment
	kept := c.lines[:0]
	for _, line := range c.lines {
		product, ok := snapshot.Product(line.ProductID)
		switch {
		case !ok:
			adjustments = append(adjustments, LineAdjustment{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Reason:      AdjustmentProductRemoved,
				OldQuantity: line.Quantity,
			})
		case product.AvailableStock == 0:
			adjustments = append(adjustments, LineAdjustment{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Reason:      AdjustmentOutOfStock,
				OldQuantity: line.Quantity,
			})
		case line.Quantity > product.AvailableStock:
			adjustments = append(adjustments, LineAdjustment{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Reason:      AdjustmentQuantityClamped,
				OldQuantity: line.Quantity,
				NewQuantity: product.AvailableStock,
			})
			line.Quantity = product.AvailableStock
			kept = append(kept, line)
		default:
			kept = append(kept, line)
		}
	}

	c.lines = kept
	c.snapshot = snapshot
	return adjustments
}

func (c *Cart) indexOf(productID catalog.ProductID) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
}
