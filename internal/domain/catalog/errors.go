package catalog

import "github.com/erp/salesdesk/internal/domain/shared"

// Catalog load errors
var (
	ErrInvalidProductID = shared.NewDomainError("INVALID_PRODUCT_ID", "Product id must be positive")
	ErrInvalidClientID  = shared.NewDomainError("INVALID_CLIENT_ID", "Client id must be positive")
	ErrNegativePrice    = shared.NewDomainError("NEGATIVE_PRICE", "Product unit price cannot be negative")
	ErrNegativeStock    = shared.NewDomainError("NEGATIVE_STOCK", "Product available stock cannot be negative")
	ErrDuplicateProduct = shared.NewDomainError("DUPLICATE_PRODUCT", "Product appears more than once in the catalog")
	ErrDuplicateClient  = shared.NewDomainError("DUPLICATE_CLIENT", "Client appears more than once in the catalog")
)
