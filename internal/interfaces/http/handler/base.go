package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/erp/salesdesk/internal/domain/shared"
	"github.com/erp/salesdesk/internal/interfaces/http/dto"
	"github.com/erp/salesdesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, code, message string) {
	h.Error(c, http.StatusConflict, code, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts application errors to HTTP responses.
// Stock errors carry the available quantity, remote errors keep the
// server's reason, and domain errors map through the code table.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var stockErr *sales.StockError
	if errors.As(err, &stockErr) {
		code := dto.NormalizeErrorCode(shared.ErrInsufficientStock.Code)
		c.Set(middleware.ErrorCodeKey, code)
		resp := dto.NewErrorResponseWithRequestID(code, stockErr.Error(), getRequestID(c))
		resp.Error.Details = []dto.ValidationDetail{{
			Field:   "quantity",
			Message: stockDetail(stockErr),
		}}
		c.JSON(dto.GetHTTPStatus(code), resp)
		return
	}

	// Catalog failures wrap the remote error; the domain code wins.
	if errors.Is(err, checkout.ErrCatalogUnavailable) {
		h.ErrorWithCode(c, dto.ErrCodeCatalogUnavailable, checkout.ErrCatalogUnavailable.Message)
		return
	}

	var remoteErr *checkout.RemoteError
	if errors.As(err, &remoteErr) {
		code := dto.ErrCodeUpstreamUnavailable
		if remoteErr.Kind == checkout.RemoteRejected {
			code = dto.ErrCodeUpstreamRejected
		}
		h.ErrorWithCode(c, code, remoteErr.Reason)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.ErrorWithCode(c, code, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}

func stockDetail(e *sales.StockError) string {
	if e.Available == 0 {
		return "Product is out of stock"
	}
	return fmt.Sprintf("At most %d units available", e.Available)
}
