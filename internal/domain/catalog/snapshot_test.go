package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() []Product {
	return []Product{
		{ID: 1, Name: "Tomate", Packaging: "caixa 20kg", UnitPrice: decimal.RequireFromString("4.99"), AvailableStock: 5},
		{ID: 2, Name: "Alface", Packaging: "maço", UnitPrice: decimal.RequireFromString("2.50"), AvailableStock: 40},
		{ID: 3, Name: "Batata", Packaging: "saco 50kg", UnitPrice: decimal.RequireFromString("120.00"), AvailableStock: 0},
	}
}

func testClients() []Client {
	return []Client{
		{ID: 10, Name: "Mercado Central", CNPJ: "12.345.678/0001-90", State: "SP"},
		{ID: 11, Name: "Maria Souza", CPF: "123.456.789-00", State: "MG"},
	}
}

// ==================== NewSnapshot ====================

func TestNewSnapshot(t *testing.T) {
	loadedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("indexes products and clients in upstream order", func(t *testing.T) {
		s, err := NewSnapshot(testProducts(), testClients(), loadedAt)
		require.NoError(t, err)

		assert.Equal(t, 3, s.ProductCount())
		assert.Equal(t, 2, s.ClientCount())
		assert.Equal(t, loadedAt, s.LoadedAt())

		products := s.Products()
		assert.Equal(t, ProductID(1), products[0].ID)
		assert.Equal(t, ProductID(3), products[2].ID)

		p, ok := s.Product(2)
		require.True(t, ok)
		assert.Equal(t, "Alface", p.Name)

		c, ok := s.Client(11)
		require.True(t, ok)
		assert.Equal(t, "Maria Souza", c.Name)
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		s, err := NewSnapshot(testProducts(), testClients(), loadedAt)
		require.NoError(t, err)

		_, ok := s.Product(99)
		assert.False(t, ok)
		_, ok = s.Client(99)
		assert.False(t, ok)
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		s, err := NewSnapshot(testProducts(), testClients(), loadedAt)
		require.NoError(t, err)

		products := s.Products()
		products[0].AvailableStock = 1000
		p, _ := s.Product(1)
		assert.Equal(t, 5, p.AvailableStock)
	})

	tests := []struct {
		name     string
		products []Product
		clients  []Client
		wantErr  error
	}{
		{
			name:     "rejects negative price",
			products: []Product{{ID: 1, UnitPrice: decimal.NewFromInt(-1)}},
			wantErr:  ErrNegativePrice,
		},
		{
			name:     "rejects negative stock",
			products: []Product{{ID: 1, AvailableStock: -3}},
			wantErr:  ErrNegativeStock,
		},
		{
			name:     "rejects non-positive product id",
			products: []Product{{ID: 0, Name: "x"}},
			wantErr:  ErrInvalidProductID,
		},
		{
			name:     "rejects duplicate product",
			products: []Product{{ID: 1}, {ID: 1}},
			wantErr:  ErrDuplicateProduct,
		},
		{
			name:    "rejects non-positive client id",
			clients: []Client{{ID: -4}},
			wantErr: ErrInvalidClientID,
		},
		{
			name:    "rejects duplicate client",
			clients: []Client{{ID: 7}, {ID: 7}},
			wantErr: ErrDuplicateClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(tt.products, tt.clients, loadedAt)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEmptySnapshot(t *testing.T) {
	s := EmptySnapshot()
	require.NotNil(t, s)
	assert.Zero(t, s.ProductCount())
	assert.Zero(t, s.ClientCount())
	assert.Empty(t, s.LowStock(DefaultLowStockThreshold))
}

// ==================== LowStock ====================

func TestSnapshot_LowStock(t *testing.T) {
	s, err := NewSnapshot(testProducts(), nil, time.Now())
	require.NoError(t, err)

	low := s.LowStock(DefaultLowStockThreshold)
	require.Len(t, low, 2)
	assert.Equal(t, ProductID(1), low[0].ID)
	assert.Equal(t, ProductID(3), low[1].ID)

	assert.Empty(t, s.LowStock(0))
}

// ==================== Client ====================

func TestClient_TaxID(t *testing.T) {
	company := Client{ID: 1, CPF: "111", CNPJ: "222"}
	person := Client{ID: 2, CPF: "111"}

	assert.True(t, company.IsCompany())
	assert.Equal(t, "222", company.TaxID())
	assert.False(t, person.IsCompany())
	assert.Equal(t, "111", person.TaxID())
	assert.False(t, Client{CNPJ: "   "}.IsCompany())
}

func TestProduct_InStock(t *testing.T) {
	assert.True(t, Product{AvailableStock: 1}.InStock())
	assert.False(t, Product{}.InStock())
	assert.Equal(t, "42", ProductID(42).String())
	assert.Equal(t, "7", ClientID(7).String())
}
