package checkout

import (
	"fmt"

	"github.com/erp/salesdesk/internal/domain/sales"
)

// Failure describes where a checkout stopped and what was already committed
type Failure struct {
	Stage  Stage
	Kind   RemoteKind
	Reason string
	Err    error
	// Order is the order created before the failure; nil for ORDER_CREATION
	Order         *sales.Order
	PaymentMethod sales.PaymentMethod
	Quote         sales.Quote
}

// Error implements the error interface
func (f *Failure) Error() string {
	return fmt.Sprintf("checkout failed at %s (%s): %s", f.Stage, f.Kind, f.Reason)
}

// Unwrap returns the remote error
func (f *Failure) Unwrap() error {
	return f.Err
}

// SaleCommitted is true when payment was already confirmed upstream
func (f *Failure) SaleCommitted() bool {
	return f.Stage == StageReceiptRetrieval
}

// Resumable is true when the checkout can continue with the created order.
// A payment failure is resumable only while the order can still be finalized.
func (f *Failure) Resumable() bool {
	if f.Stage == StageOrderCreation || f.Order == nil {
		return false
	}
	return f.Stage != StagePaymentFinalization || f.Order.Status.CanTransitionTo(sales.OrderStatusFinalized)
}

// Outcome is the result of a checkout run that reached the remote service
type Outcome struct {
	State   State
	Order   *sales.Order
	Receipt []byte
	Quote   sales.Quote
	Failure *Failure
}

// Completed returns true if the checkout finished every stage
func (o Outcome) Completed() bool {
	return o.State == StateCompleted
}
