package sales

import (
	"fmt"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// OrderID is the upstream identifier of an order
type OrderID int64

// String returns the decimal form of the id
func (id OrderID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// OrderStatus represents the status of an upstream order
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusFinalized OrderStatus = "FINALIZED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusFinalized, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusDraft:
		return target == OrderStatusFinalized || target == OrderStatusCancelled
	case OrderStatusFinalized, OrderStatusCancelled:
		return false // Terminal states
	}
	return false
}

// Order is the upstream record of a sale. Only Draft orders are created
// locally; every later status comes back from the order service.
type Order struct {
	ID     OrderID
	Number string
	Status OrderStatus
	Total  decimal.Decimal
}

// DisplayNumber returns the order number, falling back to the id
func (o Order) DisplayNumber() string {
	if o.Number != "" {
		return o.Number
	}
	return o.ID.String()
}

// ReceiptFileName is the download name of the order's printable receipt
func (o Order) ReceiptFileName() string {
	return fmt.Sprintf("venda_%s.pdf", o.DisplayNumber())
}

// OrderLine is one product of an OrderRequest
type OrderLine struct {
	ProductID catalog.ProductID
	Quantity  int
	UnitPrice decimal.Decimal
}

// OrderRequest is the payload submitted to create an order.
// Lines are copied from the cart, so later cart edits do not affect it.
type OrderRequest struct {
	ClientID        catalog.ClientID
	PaymentMethod   PaymentMethod
	DiscountPercent DiscountPercent
	Notes           string
	Lines           []OrderLine
}

// NewOrderRequest copies the cart's lines into a request
func NewOrderRequest(clientID catalog.ClientID, cart *Cart, method PaymentMethod, discount DiscountPercent, notes string) OrderRequest {
	lines := cart.Lines()
	orderLines := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		orderLines = append(orderLines, OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return OrderRequest{
		ClientID:        clientID,
		PaymentMethod:   method,
		DiscountPercent: discount,
		Notes:           notes,
		Lines:           orderLines,
	}
}
