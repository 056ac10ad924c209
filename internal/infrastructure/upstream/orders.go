package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/erp/salesdesk/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type idRef struct {
	ID int64 `json:"id"`
}

type orderItemDTO struct {
	Produto       idRef       `json:"produto"`
	Quantidade    int         `json:"quantidade"`
	PrecoUnitario json.Number `json:"precoUnitario"`
}

type createOrderDTO struct {
	Cliente        idRef          `json:"cliente"`
	FormaPagamento string         `json:"formaPagamento"`
	Desconto       json.Number    `json:"desconto"`
	Observacoes    string         `json:"observacoes"`
	Itens          []orderItemDTO `json:"itens"`
}

type orderDTO struct {
	ID          int64               `json:"id"`
	NumeroVenda string              `json:"numeroVenda"`
	Status      string              `json:"status"`
	ValorTotal  decimal.NullDecimal `json:"valorTotal"`
	ValorFinal  decimal.NullDecimal `json:"valorFinal"`
}

// toDomain maps the response. An unknown status is replaced by assumed when
// the body carries an order id.
func (o orderDTO) toDomain(assumed sales.OrderStatus, logger *zap.Logger) (*sales.Order, error) {
	status, err := StatusFromWire(o.Status)
	if err != nil {
		if o.ID <= 0 {
			return nil, checkout.NewUnavailable(err)
		}
		logger.Warn("Unrecognized order status, assuming the requested transition",
			zap.Int64("order_id", o.ID),
			zap.String("status", o.Status),
			zap.String("assumed", assumed.String()),
		)
		status = assumed
	}
	total := o.ValorFinal.Decimal
	if !o.ValorFinal.Valid {
		total = o.ValorTotal.Decimal
	}
	return &sales.Order{
		ID:     sales.OrderID(o.ID),
		Number: o.NumeroVenda,
		Status: status,
		Total:  total,
	}, nil
}

// OrderClient drives the order lifecycle on the ERP API
type OrderClient struct {
	client *Client
}

// NewOrderClient creates an OrderClient
func NewOrderClient(client *Client) *OrderClient {
	return &OrderClient{client: client}
}

// Create submits a new draft order
func (c *OrderClient) Create(ctx context.Context, req sales.OrderRequest) (*sales.Order, error) {
	method, err := PaymentToWire(req.PaymentMethod)
	if err != nil {
		return nil, checkout.NewRejected(err.Error())
	}

	body := createOrderDTO{
		Cliente:        idRef{ID: int64(req.ClientID)},
		FormaPagamento: method,
		Desconto:       json.Number(req.DiscountPercent.Value().String()),
		Observacoes:    req.Notes,
		Itens:          make([]orderItemDTO, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		body.Itens = append(body.Itens, orderItemDTO{
			Produto:       idRef{ID: int64(l.ProductID)},
			Quantidade:    l.Quantity,
			PrecoUnitario: json.Number(valueobject.NewMoneyBRL(l.UnitPrice).Rounded().Amount().String()),
		})
	}

	return c.orderCall(ctx, "create_order", sales.OrderStatusDraft, Request{Method: http.MethodPost, Path: "/vendas", Body: body})
}

// Finalize confirms payment of a draft order
func (c *OrderClient) Finalize(ctx context.Context, id sales.OrderID, method sales.PaymentMethod) (*sales.Order, error) {
	wire, err := PaymentToWire(method)
	if err != nil {
		return nil, checkout.NewRejected(err.Error())
	}
	return c.orderCall(ctx, "finalize_order", sales.OrderStatusFinalized, Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/vendas/%d/finalizar", id),
		Query:  url.Values{"formaPagamento": []string{wire}},
	})
}

// Cancel cancels a draft order
func (c *OrderClient) Cancel(ctx context.Context, id sales.OrderID) (*sales.Order, error) {
	return c.orderCall(ctx, "cancel_order", sales.OrderStatusCancelled, Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/vendas/%d/cancelar", id),
	})
}

// FetchReceipt downloads the printable PDF of an order
func (c *OrderClient) FetchReceipt(ctx context.Context, id sales.OrderID) ([]byte, error) {
	resp, err := c.client.Do(ctx, "fetch_receipt", Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/vendas/%d/pdf", id),
		Accept: "application/pdf",
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *OrderClient) orderCall(ctx context.Context, operation string, assumed sales.OrderStatus, req Request) (*sales.Order, error) {
	resp, err := c.client.Do(ctx, operation, req)
	if err != nil {
		return nil, err
	}
	// an empty body carries no state; the caller keeps what it knows
	if len(resp.Body) == 0 {
		return nil, nil
	}
	var dto orderDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(assumed, c.client.logger)
}

var (
	_ checkout.OrderService   = (*OrderClient)(nil)
	_ checkout.CatalogService = (*CatalogClient)(nil)
)
