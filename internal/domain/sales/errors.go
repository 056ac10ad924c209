package sales

import (
	"fmt"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/shared"
)

// Validation errors raised at the cart boundary
var (
	ErrProductNotFound      = shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found in the current catalog")
	ErrInvalidQuantity      = shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	ErrLineNotFound         = shared.NewDomainError("LINE_NOT_FOUND", "Cart has no line for this product")
	ErrClientNotFound       = shared.NewDomainError("CLIENT_NOT_FOUND", "Client not found in the current catalog")
	ErrNoClientSelected     = shared.NewDomainError("NO_CLIENT_SELECTED", "A client must be selected before checkout")
	ErrEmptyCart            = shared.NewDomainError("EMPTY_CART", "Cart has no lines")
	ErrInvalidDiscount      = shared.NewDomainError("INVALID_DISCOUNT", "Discount must be between 0 and 100 percent")
	ErrInvalidPaymentMethod = shared.NewDomainError("INVALID_PAYMENT_METHOD", "Unknown payment method")
	ErrInvalidOrderStatus   = shared.NewDomainError("INVALID_ORDER_STATUS", "Unknown order status")
)

// StockError reports a quantity that exceeds the product's available stock.
// It carries what the caller needs to offer a corrected value.
type StockError struct {
	ProductID catalog.ProductID
	Requested int
	Available int
}

// Error implements the error interface
func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Unwrap lets errors.Is match shared.ErrInsufficientStock
func (e *StockError) Unwrap() error {
	return shared.ErrInsufficientStock
}
