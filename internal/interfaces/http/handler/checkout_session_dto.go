package handler

import (
	"time"

	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// SelectClientRequest is the body of PUT /checkout-sessions/:id/client
type SelectClientRequest struct {
	ClientID int64 `json:"client_id" binding:"required,gt=0"`
}

// AddLineRequest is the body of POST /checkout-sessions/:id/lines.
// Quantity is checked by the cart so the response carries its error code.
type AddLineRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

// SetLineQuantityRequest is the body of PUT /checkout-sessions/:id/lines/:product_id.
// Zero or less removes the line.
type SetLineQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// UpdateTermsRequest is the body of PUT /checkout-sessions/:id/terms.
// Absent fields are left unchanged.
type UpdateTermsRequest struct {
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	PaymentMethod   *string          `json:"payment_method" binding:"omitempty,payment_method"`
	Notes           *string          `json:"notes" binding:"omitempty,max=1000"`
}

// ProductResponse is a catalog product
type ProductResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Packaging      string `json:"packaging,omitempty"`
	UnitPrice      string `json:"unit_price"`
	AvailableStock int    `json:"available_stock"`
}

// ClientResponse is a catalog client
type ClientResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TaxID     string `json:"tax_id,omitempty"`
	IsCompany bool   `json:"is_company"`
	State     string `json:"state,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// CatalogResponse is the snapshot a session prices against
type CatalogResponse struct {
	Products []ProductResponse `json:"products"`
	Clients  []ClientResponse  `json:"clients"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// LineResponse is one cart line
type LineResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Packaging   string `json:"packaging,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

// QuoteResponse is the price breakdown, amounts rounded to cents
type QuoteResponse struct {
	Subtotal        string `json:"subtotal"`
	DiscountPercent string `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	Total           string `json:"total"`
	LineCount       int    `json:"line_count"`
	ItemCount       int    `json:"item_count"`
}

// OrderResponse is an upstream order
type OrderResponse struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
	Total  string `json:"total"`
}

// FailureResponse describes where a checkout stopped
type FailureResponse struct {
	Stage         string         `json:"stage"`
	Kind          string         `json:"kind"`
	Reason        string         `json:"reason"`
	SaleCommitted bool           `json:"sale_committed"`
	Resumable     bool           `json:"resumable"`
	PaymentMethod string         `json:"payment_method,omitempty"`
	Order         *OrderResponse `json:"order,omitempty"`
}

// SessionResponse is the read model of a checkout session
type SessionResponse struct {
	ID              string           `json:"id"`
	State           string           `json:"state"`
	Client          *ClientResponse  `json:"client,omitempty"`
	Lines           []LineResponse   `json:"lines"`
	DiscountPercent string           `json:"discount_percent"`
	PaymentMethod   string           `json:"payment_method"`
	Notes           string           `json:"notes,omitempty"`
	Quote           QuoteResponse    `json:"quote"`
	CatalogLoadedAt time.Time        `json:"catalog_loaded_at"`
	PendingFailure  *FailureResponse `json:"pending_failure,omitempty"`
	LastOrder       *OrderResponse   `json:"last_order,omitempty"`
	HasReceipt      bool             `json:"has_receipt"`
	CreatedAt       time.Time        `json:"created_at"`
	LastActivityAt  time.Time        `json:"last_activity_at"`
}

// OutcomeResponse is the result of a checkout or resume
type OutcomeResponse struct {
	State            string           `json:"state"`
	Order            *OrderResponse   `json:"order,omitempty"`
	Quote            QuoteResponse    `json:"quote"`
	ReceiptAvailable bool             `json:"receipt_available"`
	Failure          *FailureResponse `json:"failure,omitempty"`
}

// AdjustmentResponse is a cart line changed by a catalog reload
type AdjustmentResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
}

// ReloadResponse reports what a catalog reload changed
type ReloadResponse struct {
	Adjustments   []AdjustmentResponse `json:"adjustments"`
	ClientCleared bool                 `json:"client_cleared"`
	LoadedAt      time.Time            `json:"loaded_at"`
	Session       SessionResponse      `json:"session"`
}

func price(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toProductResponse(p catalog.Product) ProductResponse {
	return ProductResponse{
		ID:             int64(p.ID),
		Name:           p.Name,
		Packaging:      p.Packaging,
		UnitPrice:      price(p.UnitPrice),
		AvailableStock: p.AvailableStock,
	}
}

func toClientResponse(c catalog.Client) ClientResponse {
	return ClientResponse{
		ID:        int64(c.ID),
		Name:      c.Name,
		TaxID:     c.TaxID(),
		IsCompany: c.IsCompany(),
		State:     c.State,
		Phone:     c.Phone,
	}
}

func toCatalogResponse(s *catalog.Snapshot) CatalogResponse {
	products := s.Products()
	clients := s.Clients()
	resp := CatalogResponse{
		Products: make([]ProductResponse, 0, len(products)),
		Clients:  make([]ClientResponse, 0, len(clients)),
		LoadedAt: s.LoadedAt(),
	}
	for _, p := range products {
		resp.Products = append(resp.Products, toProductResponse(p))
	}
	for _, c := range clients {
		resp.Clients = append(resp.Clients, toClientResponse(c))
	}
	return resp
}

func toLineResponses(lines []sales.CartLine) []LineResponse {
	out := make([]LineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineResponse{
			ProductID:   int64(l.ProductID),
			ProductName: l.ProductName,
			Packaging:   l.Packaging,
			Quantity:    l.Quantity,
			UnitPrice:   price(l.UnitPrice),
			Subtotal:    price(l.Subtotal()),
		})
	}
	return out
}

func toQuoteResponse(q sales.Quote) QuoteResponse {
	return QuoteResponse{
		Subtotal:        q.Subtotal.StringFixed(2),
		DiscountPercent: q.DiscountPercent.String(),
		DiscountAmount:  q.DiscountAmount.StringFixed(2),
		Total:           q.Total.StringFixed(2),
		LineCount:       q.LineCount,
		ItemCount:       q.ItemCount,
	}
}

func toOrderResponse(o *sales.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{
		ID:     int64(o.ID),
		Number: o.DisplayNumber(),
		Status: o.Status.String(),
		Total:  price(o.Total),
	}
}

func toFailureResponse(f *checkout.Failure) *FailureResponse {
	if f == nil {
		return nil
	}
	return &FailureResponse{
		Stage:         f.Stage.String(),
		Kind:          string(f.Kind),
		Reason:        f.Reason,
		SaleCommitted: f.SaleCommitted(),
		Resumable:     f.Resumable(),
		PaymentMethod: f.PaymentMethod.String(),
		Order:         toOrderResponse(f.Order),
	}
}

func toSessionResponse(v checkout.View) SessionResponse {
	resp := SessionResponse{
		ID:              v.ID.String(),
		State:           v.State.String(),
		Lines:           toLineResponses(v.Lines),
		DiscountPercent: v.Discount.String(),
		PaymentMethod:   v.PaymentMethod.String(),
		Notes:           v.Notes,
		Quote:           toQuoteResponse(v.Quote),
		CatalogLoadedAt: v.CatalogLoadedAt,
		PendingFailure:  toFailureResponse(v.PendingFailure),
		LastOrder:       toOrderResponse(v.LastOrder),
		HasReceipt:      v.HasReceipt,
		CreatedAt:       v.CreatedAt,
		LastActivityAt:  v.LastActivity,
	}
	if v.Client != nil {
		client := toClientResponse(*v.Client)
		resp.Client = &client
	}
	return resp
}

func toOutcomeResponse(o checkout.Outcome) OutcomeResponse {
	return OutcomeResponse{
		State:            o.State.String(),
		Order:            toOrderResponse(o.Order),
		Quote:            toQuoteResponse(o.Quote.Rounded()),
		ReceiptAvailable: len(o.Receipt) > 0,
		Failure:          toFailureResponse(o.Failure),
	}
}

func toReloadResponse(r checkout.ReloadResult, v checkout.View) ReloadResponse {
	resp := ReloadResponse{
		Adjustments:   make([]AdjustmentResponse, 0, len(r.Adjustments)),
		ClientCleared: r.ClientCleared,
		LoadedAt:      r.LoadedAt,
		Session:       toSessionResponse(v),
	}
	for _, a := range r.Adjustments {
		resp.Adjustments = append(resp.Adjustments, AdjustmentResponse{
			ProductID:   int64(a.ProductID),
			ProductName: a.ProductName,
			Reason:      string(a.Reason),
			OldQuantity: a.OldQuantity,
			NewQuantity: a.NewQuantity,
		})
	}
	return resp
}
