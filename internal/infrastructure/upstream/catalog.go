package upstream

import (
	"context"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

type productDTO struct {
	ID           int64           `json:"id"`
	Nome         string          `json:"nome"`
	Preco        decimal.Decimal `json:"preco"`
	EstoqueAtual *int            `json:"estoqueAtual"`
	Embalagem    string          `json:"embalagem"`
}

func (p productDTO) toDomain() catalog.Product {
	stock := 0
	if p.EstoqueAtual != nil && *p.EstoqueAtual > 0 {
		stock = *p.EstoqueAtual
	}
	return catalog.Product{
		ID:             catalog.ProductID(p.ID),
		Name:           p.Nome,
		Packaging:      p.Embalagem,
		UnitPrice:      p.Preco,
		AvailableStock: stock,
	}
}

type clientDTO struct {
	ID       int64  `json:"id"`
	Nome     string `json:"nome"`
	CPF      string `json:"cpf"`
	CNPJ     string `json:"cnpj"`
	Estado   string `json:"estado"`
	Telefone string `json:"telefone"`
}

func (c clientDTO) toDomain() catalog.Client {
	return catalog.Client{
		ID:    catalog.ClientID(c.ID),
		Name:  c.Nome,
		CPF:   c.CPF,
		CNPJ:  c.CNPJ,
		State: c.Estado,
		Phone: c.Telefone,
	}
}

// CatalogClient reads products and clients from the ERP API
type CatalogClient struct {
	client *Client
}

// NewCatalogClient creates a CatalogClient
func NewCatalogClient(client *Client) *CatalogClient {
	return &CatalogClient{client: client}
}

// ListProducts returns every product with its current stock.
// Negative or missing stock is reported as zero.
func (c *CatalogClient) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var dtos []productDTO
	if err := c.client.getJSON(ctx, "list_products", "/produtos", &dtos); err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(dtos))
	for _, d := range dtos {
		products = append(products, d.toDomain())
	}
	return products, nil
}

// ListClients returns every client
func (c *CatalogClient) ListClients(ctx context.Context) ([]catalog.Client, error) {
	var dtos []clientDTO
	if err := c.client.getJSON(ctx, "list_clients", "/clientes", &dtos); err != nil {
		return nil, err
	}
	clients := make([]catalog.Client, 0, len(dtos))
	for _, d := range dtos {
		clients = append(clients, d.toDomain())
	}
	return clients, nil
}
