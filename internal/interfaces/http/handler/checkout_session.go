package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/erp/salesdesk/internal/domain/shared"
	"github.com/erp/salesdesk/internal/infrastructure/logger"
	"github.com/erp/salesdesk/internal/interfaces/http/dto"
	"github.com/erp/salesdesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client's key for a checkout submission
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutSessionHandler exposes checkout sessions over HTTP
type CheckoutSessionHandler struct {
	BaseHandler
	service        *checkout.Service
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
}

// CheckoutSessionOption configures a CheckoutSessionHandler
type CheckoutSessionOption func(*CheckoutSessionHandler)

// WithIdempotency rejects repeated Idempotency-Key headers within ttl.
// A nil store disables the check.
func WithIdempotency(store shared.IdempotencyStore, ttl time.Duration) CheckoutSessionOption {
	return func(h *CheckoutSessionHandler) {
		h.idempotency = store
		h.idempotencyTTL = ttl
	}
}

// NewCheckoutSessionHandler creates a new CheckoutSessionHandler
func NewCheckoutSessionHandler(service *checkout.Service, opts ...CheckoutSessionOption) *CheckoutSessionHandler {
	h := &CheckoutSessionHandler{
		service:        service,
		idempotencyTTL: shared.DefaultIdempotencyConfig().TTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the session routes on rg
func (h *CheckoutSessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/checkout-sessions")
	sessions.POST("", h.Open)
	sessions.GET("/:id", h.Get)
	sessions.DELETE("/:id", h.Close)
	sessions.GET("/:id/catalog", h.GetCatalog)
	sessions.POST("/:id/catalog/reload", h.ReloadCatalog)
	sessions.PUT("/:id/client", h.SelectClient)
	sessions.POST("/:id/lines", h.AddLine)
	sessions.PUT("/:id/lines/:product_id", h.SetLineQuantity)
	sessions.DELETE("/:id/lines/:product_id", h.RemoveLine)
	sessions.PUT("/:id/terms", h.UpdateTerms)
	sessions.POST("/:id/reset", h.Reset)
	sessions.POST("/:id/checkout", h.Checkout)
	sessions.POST("/:id/checkout/resume", h.Resume)
	sessions.POST("/:id/checkout/cancel", h.CancelPendingOrder)
	sessions.GET("/:id/receipt", h.Receipt)
}

// session resolves the :id path parameter. It writes the error response
// and returns false when the session cannot be used.
func (h *CheckoutSessionHandler) session(c *gin.Context) (*checkout.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return nil, false
	}
	session, err := h.service.Get(id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), id.String()))
	return session, true
}

func (h *CheckoutSessionHandler) productID(c *gin.Context) (catalog.ProductID, bool) {
	id, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "Invalid product ID")
		return 0, false
	}
	return catalog.ProductID(id), true
}

// Open starts a session on a fresh catalog snapshot
// POST /checkout-sessions
func (h *CheckoutSessionHandler) Open(c *gin.Context) {
	session, err := h.service.Open(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toSessionResponse(session.View()))
}

// Get returns the session read model
// GET /checkout-sessions/:id
func (h *CheckoutSessionHandler) Get(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.Success(c, toSessionResponse(session.View()))
}

// Close discards a session
// DELETE /checkout-sessions/:id
func (h *CheckoutSessionHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}
	if err := h.service.Close(id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GetCatalog returns the snapshot the session prices against
// GET /checkout-sessions/:id/catalog
func (h *CheckoutSessionHandler) GetCatalog(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.Success(c, toCatalogResponse(session.Snapshot()))
}

// ReloadCatalog fetches a new snapshot and rebinds the cart to it
// POST /checkout-sessions/:id/catalog/reload
func (h *CheckoutSessionHandler) ReloadCatalog(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	result, err := session.ReloadCatalog(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toReloadResponse(result, session.View()))
}

// SelectClient attaches a catalog client to the session
// PUT /checkout-sessions/:id/client
func (h *CheckoutSessionHandler) SelectClient(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req SelectClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if err := session.SelectClient(catalog.ClientID(req.ClientID)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session.View()))
}

// AddLine adds units of a product, merging into an existing line
// POST /checkout-sessions/:id/lines
func (h *CheckoutSessionHandler) AddLine(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if err := session.AddLine(catalog.ProductID(req.ProductID), req.Quantity); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session.View()))
}

// SetLineQuantity overwrites a line's quantity
// PUT /checkout-sessions/:id/lines/:product_id
func (h *CheckoutSessionHandler) SetLineQuantity(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	productID, ok := h.productID(c)
	if !ok {
		return
	}
	var req SetLineQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if err := session.SetLineQuantity(productID, *req.Quantity); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session.View()))
}

// RemoveLine drops a product from the cart
// DELETE /checkout-sessions/:id/lines/:product_id
func (h *CheckoutSessionHandler) RemoveLine(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	productID, ok := h.productID(c)
	if !ok {
		return
	}
	if err := session.RemoveLine(productID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session.View()))
}

// UpdateTerms sets discount, payment method and notes.
// Every field is validated before any is applied.
// PUT /checkout-sessions/:id/terms
func (h *CheckoutSessionHandler) UpdateTerms(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req UpdateTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	var terms checkout.Terms
	if req.DiscountPercent != nil {
		discount, err := sales.NewDiscountPercent(*req.DiscountPercent)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		terms.Discount = &discount
	}
	if req.PaymentMethod != nil {
		method, err := sales.ParsePaymentMethod(*req.PaymentMethod)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		terms.PaymentMethod = &method
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		terms.Notes = &notes
	}

	if err := session.SetTerms(terms); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session.View()))
}

// Reset clears the cart, the terms and any failed checkout
// POST /checkout-sessions/:id/reset
func (h *CheckoutSessionHandler) Reset(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Reset(); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session.View()))
}

// Checkout submits the cart to the order service.
// The remote calls run detached from the request so a dropped connection
// cannot abandon a half-finished sale.
// POST /checkout-sessions/:id/checkout
func (h *CheckoutSessionHandler) Checkout(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	reserved := ""
	if key != "" && h.idempotency != nil {
		scoped := session.ID().String() + ":" + key
		fresh, err := h.idempotency.MarkProcessed(ctx, scoped, h.idempotencyTTL)
		switch {
		case err != nil:
			logger.L(ctx).Warn("Idempotency check failed, continuing without it", zap.Error(err))
		case !fresh:
			h.Conflict(c, dto.ErrCodeAlreadyProcessed, shared.ErrAlreadyProcessed.Message)
			return
		default:
			reserved = scoped
		}
	}

	outcome, err := session.Checkout(context.WithoutCancel(ctx))
	if err != nil {
		// Nothing reached the order service; the key may be used again.
		if reserved != "" {
			if ferr := h.idempotency.Forget(ctx, reserved); ferr != nil {
				logger.L(ctx).Warn("Failed to release idempotency key", zap.Error(ferr))
			}
		}
		h.HandleError(c, err)
		return
	}
	h.writeOutcome(c, outcome)
}

// Resume continues a failed checkout from the stage that failed
// POST /checkout-sessions/:id/checkout/resume
func (h *CheckoutSessionHandler) Resume(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	outcome, err := session.Resume(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.writeOutcome(c, outcome)
}

// CancelPendingOrder cancels the draft order left by a failed finalization
// POST /checkout-sessions/:id/checkout/cancel
func (h *CheckoutSessionHandler) CancelPendingOrder(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	order, err := session.CancelPendingOrder(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(order))
}

// Receipt downloads the PDF of the last completed sale
// GET /checkout-sessions/:id/receipt
func (h *CheckoutSessionHandler) Receipt(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	receipt, err := session.Receipt()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receipt.FileName))
	c.Data(http.StatusOK, "application/pdf", receipt.Data)
}

func (h *CheckoutSessionHandler) writeOutcome(c *gin.Context, outcome checkout.Outcome) {
	data := toOutcomeResponse(outcome)
	if outcome.Failure == nil {
		h.Success(c, data)
		return
	}

	f := outcome.Failure
	code := dto.CheckoutFailureCode(f.Stage.String())
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(
		dto.CheckoutFailureStatus(f.Kind == checkout.RemoteRejected),
		dto.NewFailureResponse(data, code, f.Reason, getRequestID(c)),
	)
}
