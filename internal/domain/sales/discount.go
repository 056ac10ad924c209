package sales

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountPercent is an order-level discount in the closed range [0, 100]
type DiscountPercent struct {
	value decimal.Decimal
}

// NoDiscount is the zero discount
var NoDiscount = DiscountPercent{}

// NewDiscountPercent validates a discount percentage
func NewDiscountPercent(value decimal.Decimal) (DiscountPercent, error) {
	if value.IsNegative() || value.GreaterThan(hundred) {
		return DiscountPercent{}, ErrInvalidDiscount
	}
	return DiscountPercent{value: value}, nil
}

// MustDiscountPercent is NewDiscountPercent for literals known to be valid
func MustDiscountPercent(value string) DiscountPercent {
	d, err := NewDiscountPercent(decimal.RequireFromString(value))
	if err != nil {
		panic(err)
	}
	return d
}

// Value returns the percentage as a decimal
func (d DiscountPercent) Value() decimal.Decimal {
	return d.value
}

// IsZero returns true when no discount applies
func (d DiscountPercent) IsZero() bool {
	return d.value.IsZero()
}

// String returns the percentage without trailing zeros
func (d DiscountPercent) String() string {
	return d.value.String()
}
