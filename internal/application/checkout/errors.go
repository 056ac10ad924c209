package checkout

import "github.com/erp/salesdesk/internal/domain/shared"

// Checkout state errors
var (
	ErrCheckoutInProgress = shared.NewDomainError("CHECKOUT_IN_PROGRESS", "A checkout is already in progress for this session")
	ErrNotResumable       = shared.NewDomainError("NOT_RESUMABLE", "There is no failed checkout that can be resumed")
	ErrNothingToCancel    = shared.NewDomainError("NOTHING_TO_CANCEL", "There is no pending draft order to cancel")
	ErrPendingOrder       = shared.NewDomainError("PENDING_ORDER", "Resume or cancel the pending order before starting a new checkout")
	ErrNoReceipt          = shared.NewDomainError("NO_RECEIPT", "No receipt is available for this session")
	ErrSessionNotFound    = shared.NewDomainError("SESSION_NOT_FOUND", "Checkout session not found")
	ErrCatalogUnavailable = shared.NewDomainError("CATALOG_UNAVAILABLE", "Catalog could not be loaded")
)
