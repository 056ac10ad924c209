package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/sales"
)

// CatalogService reads the product and client catalog.
// Failures are surfaced as-is; the caller decides whether to reload.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	ListClients(ctx context.Context) ([]catalog.Client, error)
}

// OrderService drives the remote order lifecycle.
// Errors should be *RemoteError; anything else is treated as Unavailable.
type OrderService interface {
	Create(ctx context.Context, req sales.OrderRequest) (*sales.Order, error)
	Finalize(ctx context.Context, id sales.OrderID, method sales.PaymentMethod) (*sales.Order, error)
	FetchReceipt(ctx context.Context, id sales.OrderID) ([]byte, error)
	Cancel(ctx context.Context, id sales.OrderID) (*sales.Order, error)
}

// ReceiptArchive keeps a copy of printed receipts
type ReceiptArchive interface {
	Store(ctx context.Context, order sales.Order, receipt []byte) (string, error)
}

// RemoteKind classifies a remote failure
type RemoteKind string

const (
	// RemoteRejected is a business-rule failure reported by the order service
	RemoteRejected RemoteKind = "REJECTED"
	// RemoteUnavailable is a transport failure or an unusable response
	RemoteUnavailable RemoteKind = "UNAVAILABLE"
)

// RemoteError is returned by the upstream adapters
type RemoteError struct {
	Kind   RemoteKind
	Reason string
	Err    error
}

// NewRejected creates a RemoteError carrying the server's reason
func NewRejected(reason string) *RemoteError {
	return &RemoteError{Kind: RemoteRejected, Reason: reason}
}

// NewUnavailable wraps a transport-level failure
func NewUnavailable(err error) *RemoteError {
	return &RemoteError{Kind: RemoteUnavailable, Reason: "remote service unavailable", Err: err}
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying error
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is a RemoteRejected error
func IsRejected(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.Kind == RemoteRejected
}

// asRemoteError normalizes any error into a RemoteError
func asRemoteError(err error) *RemoteError {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr
	}
	return NewUnavailable(err)
}
