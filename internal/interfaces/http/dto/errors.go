package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	// ErrCodeValidation is the base code for binding/validator failures
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Cart and terms error codes
const (
	ErrCodeNoClientSelected     = "ERR_NO_CLIENT_SELECTED"
	ErrCodeEmptyCart            = "ERR_EMPTY_CART"
	ErrCodeInvalidQuantity      = "ERR_INVALID_QUANTITY"
	ErrCodeProductNotFound      = "ERR_PRODUCT_NOT_FOUND"
	ErrCodeClientNotFound       = "ERR_CLIENT_NOT_FOUND"
	ErrCodeLineNotFound         = "ERR_LINE_NOT_FOUND"
	ErrCodeInvalidDiscount      = "ERR_INVALID_DISCOUNT"
	ErrCodeInvalidPaymentMethod = "ERR_INVALID_PAYMENT_METHOD"
	ErrCodeInsufficientStock    = "ERR_INSUFFICIENT_STOCK"
)

// Session and checkout error codes
const (
	ErrCodeSessionNotFound       = "ERR_SESSION_NOT_FOUND"
	ErrCodeCheckoutInProgress    = "ERR_CHECKOUT_IN_PROGRESS"
	ErrCodePendingOrder          = "ERR_PENDING_ORDER"
	ErrCodeNotResumable          = "ERR_NOT_RESUMABLE"
	ErrCodeNothingToCancel       = "ERR_NOTHING_TO_CANCEL"
	ErrCodeNoReceipt             = "ERR_NO_RECEIPT"
	ErrCodeAlreadyProcessed      = "ERR_ALREADY_PROCESSED"
	ErrCodeCatalogUnavailable    = "ERR_CATALOG_UNAVAILABLE"
	ErrCodeUpstreamRejected      = "ERR_UPSTREAM_REJECTED"
	ErrCodeUpstreamUnavailable   = "ERR_UPSTREAM_UNAVAILABLE"
	ErrCodeCheckoutPrefix        = "ERR_CHECKOUT_"
	ErrCodeCheckoutOrderCreation = "ERR_CHECKOUT_ORDER_CREATION"
	ErrCodeCheckoutPayment       = "ERR_CHECKOUT_PAYMENT_FINALIZATION"
	ErrCodeCheckoutReceipt       = "ERR_CHECKOUT_RECEIPT_RETRIEVAL"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Malformed or invalid input -> 400
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeInvalidJSON:          http.StatusBadRequest,
	ErrCodeNoClientSelected:     http.StatusBadRequest,
	ErrCodeEmptyCart:            http.StatusBadRequest,
	ErrCodeInvalidQuantity:      http.StatusBadRequest,
	ErrCodeProductNotFound:      http.StatusBadRequest,
	ErrCodeClientNotFound:       http.StatusBadRequest,
	ErrCodeInvalidDiscount:      http.StatusBadRequest,
	ErrCodeInvalidPaymentMethod: http.StatusBadRequest,

	ErrCodeTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited: http.StatusTooManyRequests,

	// Missing resources -> 404
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeSessionNotFound: http.StatusNotFound,
	ErrCodeLineNotFound:    http.StatusNotFound,
	ErrCodeNoReceipt:       http.StatusNotFound,

	// Concurrent or duplicate submissions -> 409
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeCheckoutInProgress: http.StatusConflict,
	ErrCodePendingOrder:       http.StatusConflict,
	ErrCodeAlreadyProcessed:   http.StatusConflict,

	// Business rules -> 422
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodeNotResumable:      http.StatusUnprocessableEntity,
	ErrCodeNothingToCancel:   http.StatusUnprocessableEntity,
	ErrCodeUpstreamRejected:  http.StatusUnprocessableEntity,

	// Upstream ERP failures -> 502
	ErrCodeCatalogUnavailable:  http.StatusBadGateway,
	ErrCodeUpstreamUnavailable: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"INVALID_INPUT":          ErrCodeBadRequest,
	"INVALID_STATE":          ErrCodeInvalidState,
	"ALREADY_PROCESSED":      ErrCodeAlreadyProcessed,
	"NO_CLIENT_SELECTED":     ErrCodeNoClientSelected,
	"EMPTY_CART":             ErrCodeEmptyCart,
	"INVALID_QUANTITY":       ErrCodeInvalidQuantity,
	"PRODUCT_NOT_FOUND":      ErrCodeProductNotFound,
	"CLIENT_NOT_FOUND":       ErrCodeClientNotFound,
	"LINE_NOT_FOUND":         ErrCodeLineNotFound,
	"INVALID_DISCOUNT":       ErrCodeInvalidDiscount,
	"INVALID_PAYMENT_METHOD": ErrCodeInvalidPaymentMethod,
	"INSUFFICIENT_STOCK":     ErrCodeInsufficientStock,
	"SESSION_NOT_FOUND":      ErrCodeSessionNotFound,
	"CHECKOUT_IN_PROGRESS":   ErrCodeCheckoutInProgress,
	"PENDING_ORDER":          ErrCodePendingOrder,
	"NOT_RESUMABLE":          ErrCodeNotResumable,
	"NOTHING_TO_CANCEL":      ErrCodeNothingToCancel,
	"NO_RECEIPT":             ErrCodeNoReceipt,
	"CATALOG_UNAVAILABLE":    ErrCodeCatalogUnavailable,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}

// CheckoutFailureCode returns the code reported for a checkout that stopped at stage
func CheckoutFailureCode(stage string) string {
	return ErrCodeCheckoutPrefix + stage
}

// CheckoutFailureStatus is 422 for rejected stages and 502 for unavailable ones
func CheckoutFailureStatus(rejected bool) int {
	if rejected {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
