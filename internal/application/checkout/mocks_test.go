package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderService is a mock implementation of OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Create(ctx context.Context, req sales.OrderRequest) (*sales.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Order), args.Error(1)
}

func (m *MockOrderService) Finalize(ctx context.Context, id sales.OrderID, method sales.PaymentMethod) (*sales.Order, error) {
	args := m.Called(ctx, id, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Order), args.Error(1)
}

func (m *MockOrderService) FetchReceipt(ctx context.Context, id sales.OrderID) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, id sales.OrderID) (*sales.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Order), args.Error(1)
}

// MockCatalogService is a mock implementation of CatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ListClients(ctx context.Context) ([]catalog.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Client), args.Error(1)
}

// MockReceiptArchive is a mock implementation of ReceiptArchive
type MockReceiptArchive struct {
	mock.Mock
}

func (m *MockReceiptArchive) Store(ctx context.Context, order sales.Order, receipt []byte) (string, error) {
	args := m.Called(ctx, order, receipt)
	return args.String(0), args.Error(1)
}

// recordingMetrics collects everything the orchestrator reports
type recordingMetrics struct {
	mu       sync.Mutex
	stages   []string
	outcomes []string
}

func (r *recordingMetrics) ObserveStage(stage, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage+":"+result)
}

func (r *recordingMetrics) RecordOutcome(state, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, state+":"+stage)
}

// ==================== fixtures ====================

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: 1, Name: "Tomate", Packaging: "caixa", UnitPrice: decimal.RequireFromString("10.00"), AvailableStock: 5},
		{ID: 2, Name: "Alface", Packaging: "maço", UnitPrice: decimal.RequireFromString("2.50"), AvailableStock: 40},
	}
}

func testClients() []catalog.Client {
	return []catalog.Client{
		{ID: 7, Name: "Mercado Central", CNPJ: "12.345.678/0001-90"},
	}
}

func testSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	s, err := catalog.NewSnapshot(testProducts(), testClients(), time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func testCart(t *testing.T) *sales.Cart {
	t.Helper()
	cart := sales.NewCart(testSnapshot(t))
	require.NoError(t, cart.AddLine(1, 2))
	require.NoError(t, cart.AddLine(2, 4))
	return cart
}

func draftOrder() *sales.Order {
	return &sales.Order{ID: 501, Number: "V-000501", Status: sales.OrderStatusDraft, Total: decimal.RequireFromString("30.00")}
}

func finalizedOrder() *sales.Order {
	return &sales.Order{ID: 501, Number: "V-000501", Status: sales.OrderStatusFinalized, Total: decimal.RequireFromString("30.00")}
}

var receiptPDF = []byte("%PDF-1.4 receipt")
