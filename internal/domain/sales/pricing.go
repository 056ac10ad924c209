package sales

import (
	"github.com/erp/salesdesk/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Subtotal is the sum of all line subtotals, unrounded
func Subtotal(cart *Cart) valueobject.Money {
	sum := valueobject.ZeroBRL()
	for _, l := range cart.lines {
		sum = sum.MustAdd(l.Amount())
	}
	return sum
}

// DiscountAmount is Subtotal × d / 100, unrounded
func DiscountAmount(cart *Cart, d DiscountPercent) valueobject.Money {
	return Subtotal(cart).CalculatePercentage(d.Value())
}

// Total is Subtotal minus DiscountAmount, unrounded
func Total(cart *Cart, d DiscountPercent) valueobject.Money {
	return Subtotal(cart).ApplyDiscount(d.Value())
}

// Quote bundles the price breakdown of a cart under a discount
type Quote struct {
	Subtotal        valueobject.Money
	DiscountPercent decimal.Decimal
	DiscountAmount  valueobject.Money
	Total           valueobject.Money
	LineCount       int
	ItemCount       int
}

// QuoteCart prices a cart. Amounts keep full precision; call Rounded
// for display or submission.
func QuoteCart(cart *Cart, d DiscountPercent) Quote {
	subtotal := Subtotal(cart)
	return Quote{
		Subtotal:        subtotal,
		DiscountPercent: d.Value(),
		DiscountAmount:  subtotal.CalculatePercentage(d.Value()),
		Total:           subtotal.ApplyDiscount(d.Value()),
		LineCount:       cart.Len(),
		ItemCount:       cart.TotalQuantity(),
	}
}

// Rounded returns the quote with every amount rounded to display precision
func (q Quote) Rounded() Quote {
	q.Subtotal = q.Subtotal.Rounded()
	q.DiscountAmount = q.DiscountAmount.Rounded()
	q.Total = q.Total.Rounded()
	return q
}
