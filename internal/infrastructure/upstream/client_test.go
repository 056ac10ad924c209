package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	mu       sync.Mutex
	calls    []string
	breakers []int
}

func (r *recordingMetrics) ObserveUpstream(op, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op+":"+status)
}

func (r *recordingMetrics) SetBreakerState(_ string, state int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = append(r.breakers, state)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) (*Client, *recordingMetrics) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL + "/api"
	cfg.Token = "test-token"
	for _, m := range mutate {
		m(&cfg)
	}
	metrics := &recordingMetrics{}
	client, err := NewClient(cfg, WithMetrics(metrics))
	require.NoError(t, err)
	return client, metrics
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func remoteErr(t *testing.T, err error) *checkout.RemoteError {
	t.Helper()
	var re *checkout.RemoteError
	require.ErrorAs(t, err, &re)
	return re
}

// ==================== Client ====================

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClient_SendsHeaders(t *testing.T) {
	client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/produtos", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "salesdesk/1.0", r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusOK, `[]`)
	})

	products, err := NewCatalogClient(client).ListProducts(context.Background())

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, []string{"list_products:ok"}, metrics.calls)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   checkout.RemoteKind
		wantReason string
	}{
		{"message", http.StatusUnprocessableEntity, `{"message":"Estoque insuficiente para Tomate"}`, checkout.RemoteRejected, "Estoque insuficiente para Tomate"},
		{"error field", http.StatusBadRequest, `{"error":"Cliente inativo"}`, checkout.RemoteRejected, "Cliente inativo"},
		{"field errors", http.StatusBadRequest, `{"fieldErrors":{"quantidade":"deve ser positiva","cliente":"obrigatório"}}`, checkout.RemoteRejected, "obrigatório"},
		{"bare 404", http.StatusNotFound, ``, checkout.RemoteRejected, "request rejected with status 404"},
		{"server error", http.StatusInternalServerError, `{"message":"NullPointerException"}`, checkout.RemoteUnavailable, "remote service unavailable"},
		{"unauthorized", http.StatusUnauthorized, `{"message":"token expirado"}`, checkout.RemoteUnavailable, "remote service unavailable"},
		{"forbidden", http.StatusForbidden, ``, checkout.RemoteUnavailable, "remote service unavailable"},
		{"rate limited", http.StatusTooManyRequests, ``, checkout.RemoteUnavailable, "remote service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := NewCatalogClient(client).ListClients(context.Background())

			re := remoteErr(t, err)
			assert.Equal(t, tt.wantKind, re.Kind)
			assert.Equal(t, tt.wantReason, re.Reason)
		})
	}
}

func TestClient_MalformedBodyIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `<html>proxy error</html>`)
	})

	_, err := NewCatalogClient(client).ListProducts(context.Background())

	assert.Equal(t, checkout.RemoteUnavailable, remoteErr(t, err).Kind)
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(c *Config) { c.Timeout = 50 * time.Millisecond })
	defer close(release)

	_, err := NewCatalogClient(client).ListProducts(context.Background())

	assert.Equal(t, checkout.RemoteUnavailable, remoteErr(t, err).Kind)
}

func TestClient_BreakerOpensOnTransportFailures(t *testing.T) {
	var hits atomic.Int32
	client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadGateway, ``)
	}, func(c *Config) {
		c.BreakerFailures = 2
		c.BreakerCooldown = time.Minute
	})
	catalogClient := NewCatalogClient(client)

	for i := 0; i < 2; i++ {
		_, err := catalogClient.ListProducts(context.Background())
		require.Error(t, err)
	}
	_, err := catalogClient.ListProducts(context.Background())

	assert.Equal(t, checkout.RemoteUnavailable, remoteErr(t, err).Kind)
	assert.Equal(t, int32(2), hits.Load())
	assert.Contains(t, metrics.calls, "list_products:breaker_open")
	// closed at start, then open
	assert.Equal(t, []int{0, 2}, metrics.breakers)
}

func TestClient_RejectionsDoNotOpenBreaker(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusUnprocessableEntity, `{"message":"Venda já finalizada"}`)
	}, func(c *Config) { c.BreakerFailures = 2 })
	orders := NewOrderClient(client)

	for i := 0; i < 5; i++ {
		_, err := orders.Finalize(context.Background(), 1, sales.PaymentCash)
		assert.True(t, checkout.IsRejected(err))
	}
	assert.Equal(t, int32(5), hits.Load())
}

// ==================== Catalog ====================

func TestCatalogClient_ListProducts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[
			{"id":1,"nome":"Tomate","preco":10.5,"estoqueAtual":5,"embalagem":"caixa"},
			{"id":2,"nome":"Alface","preco":"2.49","estoqueAtual":-3},
			{"id":3,"nome":"Cebola","preco":4}
		]`)
	})

	products, err := NewCatalogClient(client).ListProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, catalog.ProductID(1), products[0].ID)
	assert.Equal(t, "Tomate", products[0].Name)
	assert.Equal(t, "caixa", products[0].Packaging)
	assert.True(t, decimal.RequireFromString("10.5").Equal(products[0].UnitPrice))
	assert.Equal(t, 5, products[0].AvailableStock)
	assert.True(t, decimal.RequireFromString("2.49").Equal(products[1].UnitPrice))
	assert.Equal(t, 0, products[1].AvailableStock)
	assert.Equal(t, 0, products[2].AvailableStock)
}

func TestCatalogClient_ListClients(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clientes", r.URL.Path)
		writeJSON(w, http.StatusOK, `[
			{"id":7,"nome":"Mercado Central","cnpj":"12.345.678/0001-90","estado":"SP","telefone":"11 5555-0000"},
			{"id":8,"nome":"Ana Souza","cpf":"123.456.789-00","estado":"MG"}
		]`)
	})

	clients, err := NewCatalogClient(client).ListClients(context.Background())

	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.True(t, clients[0].IsCompany())
	assert.Equal(t, "12.345.678/0001-90", clients[0].TaxID())
	assert.False(t, clients[1].IsCompany())
	assert.Equal(t, "123.456.789-00", clients[1].TaxID())
	assert.Equal(t, "MG", clients[1].State)
}

// ==================== Orders ====================

func TestOrderClient_Create(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/vendas", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"cliente":{"id":7},
			"formaPagamento":"pix",
			"desconto":12.5,
			"observacoes":"portão azul",
			"itens":[
				{"produto":{"id":1},"quantidade":2,"precoUnitario":10.5},
				{"produto":{"id":2},"quantidade":4,"precoUnitario":2.49}
			]
		}`, string(raw))

		writeJSON(w, http.StatusCreated, `{"id":501,"numeroVenda":"V-000501","status":"PENDENTE","valorTotal":27.07}`)
	})

	order, err := NewOrderClient(client).Create(context.Background(), sales.OrderRequest{
		ClientID:        7,
		PaymentMethod:   sales.PaymentInstantTransfer,
		DiscountPercent: sales.MustDiscountPercent("12.5"),
		Notes:           "portão azul",
		Lines: []sales.OrderLine{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")},
			{ProductID: 2, Quantity: 4, UnitPrice: decimal.RequireFromString("2.49")},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, sales.OrderID(501), order.ID)
	assert.Equal(t, "V-000501", order.Number)
	assert.Equal(t, sales.OrderStatusDraft, order.Status)
	assert.True(t, decimal.RequireFromString("27.07").Equal(order.Total))
}

func TestOrderClient_CreateRoundsUnitPrices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Itens []struct {
				PrecoUnitario json.Number `json:"precoUnitario"`
			} `json:"itens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Itens, 3)
		assert.Equal(t, "0.33", body.Itens[0].PrecoUnitario.String())
		assert.Equal(t, "1.01", body.Itens[1].PrecoUnitario.String())
		assert.Equal(t, "7", body.Itens[2].PrecoUnitario.String())

		writeJSON(w, http.StatusCreated, `{"id":502,"numeroVenda":"V-000502","status":"PENDENTE"}`)
	})

	_, err := NewOrderClient(client).Create(context.Background(), sales.OrderRequest{
		ClientID:      7,
		PaymentMethod: sales.PaymentCash,
		Lines: []sales.OrderLine{
			{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("0.333")},
			{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("1.005")},
			{ProductID: 3, Quantity: 1, UnitPrice: decimal.NewFromInt(7)},
		},
	})

	require.NoError(t, err)
}

func TestOrderClient_Finalize(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/vendas/501/finalizar", r.URL.Path)
		assert.Equal(t, "cartao_credito", r.URL.Query().Get("formaPagamento"))
		writeJSON(w, http.StatusOK, `{"id":501,"numeroVenda":"V-000501","status":"FINALIZADA","valorFinal":27.07}`)
	})

	order, err := NewOrderClient(client).Finalize(context.Background(), 501, sales.PaymentCreditCard)

	require.NoError(t, err)
	assert.Equal(t, sales.OrderStatusFinalized, order.Status)
	assert.Equal(t, "27.07", order.Total.StringFixed(2))
}

func TestOrderClient_FinalizeEmptyBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	order, err := NewOrderClient(client).Finalize(context.Background(), 501, sales.PaymentCash)

	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestOrderClient_UnknownStatusKeepsOrder(t *testing.T) {
	tests := []struct {
		name string
		call func(*OrderClient) (*sales.Order, error)
		want sales.OrderStatus
	}{
		{"create", func(c *OrderClient) (*sales.Order, error) {
			return c.Create(context.Background(), sales.OrderRequest{ClientID: 7, PaymentMethod: sales.PaymentCash})
		}, sales.OrderStatusDraft},
		{"finalize", func(c *OrderClient) (*sales.Order, error) {
			return c.Finalize(context.Background(), 100, sales.PaymentCash)
		}, sales.OrderStatusFinalized},
		{"cancel", func(c *OrderClient) (*sales.Order, error) {
			return c.Cancel(context.Background(), 100)
		}, sales.OrderStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"id":100,"numeroVenda":"V-1","status":"ABERTA"}`)
			})

			order, err := tt.call(NewOrderClient(client))

			require.NoError(t, err)
			assert.Equal(t, sales.OrderID(100), order.ID)
			assert.Equal(t, "V-1", order.Number)
			assert.Equal(t, tt.want, order.Status)
		})
	}
}

func TestOrderClient_MissingStatusKeepsOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":100,"numeroVenda":"V-1"}`)
	})

	order, err := NewOrderClient(client).Create(context.Background(), sales.OrderRequest{ClientID: 7, PaymentMethod: sales.PaymentCash})

	require.NoError(t, err)
	assert.Equal(t, sales.OrderID(100), order.ID)
	assert.Equal(t, sales.OrderStatusDraft, order.Status)
}

func TestOrderClient_UnknownStatusWithoutIDIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"EM_ANALISE"}`)
	})

	_, err := NewOrderClient(client).Cancel(context.Background(), 501)

	re := remoteErr(t, err)
	assert.Equal(t, checkout.RemoteUnavailable, re.Kind)
	assert.ErrorIs(t, err, sales.ErrInvalidOrderStatus)
}

// The order created upstream travels with the failure, and resuming never
// creates a second one.
func TestOrderClient_CreatedOrderSurvivesCheckoutFailure(t *testing.T) {
	var created, finalizeCalls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/vendas":
			created.Add(1)
			writeJSON(w, http.StatusCreated, `{"id":100,"numeroVenda":"V-1","status":"ABERTA"}`)
		case r.URL.Path == "/api/vendas/100/finalizar":
			if finalizeCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(w, http.StatusOK, `{"id":100,"numeroVenda":"V-1","status":"FINALIZADA","valorFinal":21}`)
		case r.URL.Path == "/api/vendas/100/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	snapshot, err := catalog.NewSnapshot(
		[]catalog.Product{{ID: 1, Name: "Tomate", UnitPrice: decimal.RequireFromString("10.50"), AvailableStock: 5}},
		[]catalog.Client{{ID: 7, Name: "Mercado Central"}},
		time.Now(),
	)
	require.NoError(t, err)
	cart := sales.NewCart(snapshot)
	require.NoError(t, cart.AddLine(1, 2))

	o := checkout.NewOrchestrator(NewOrderClient(client))
	outcome, err := o.Checkout(context.Background(), checkout.Request{
		ClientID:      7,
		Cart:          cart,
		PaymentMethod: sales.PaymentCash,
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, checkout.StagePaymentFinalization, outcome.Failure.Stage)
	require.NotNil(t, outcome.Failure.Order)
	assert.Equal(t, sales.OrderID(100), outcome.Failure.Order.ID)
	assert.Equal(t, sales.OrderStatusDraft, outcome.Failure.Order.Status)

	outcome, err = o.Resume(context.Background(), outcome.Failure)
	require.NoError(t, err)
	assert.True(t, outcome.Completed())
	assert.Equal(t, sales.OrderID(100), outcome.Order.ID)
	assert.Equal(t, int32(1), created.Load())
}

func TestOrderClient_Cancel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/vendas/501/cancelar", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"id":501,"numeroVenda":"V-000501","status":"CANCELADA"}`)
	})

	order, err := NewOrderClient(client).Cancel(context.Background(), 501)

	require.NoError(t, err)
	assert.Equal(t, sales.OrderStatusCancelled, order.Status)
}

func TestOrderClient_FetchReceipt(t *testing.T) {
	pdf := []byte("%PDF-1.4\n...")
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/vendas/501/pdf", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	})

	data, err := NewOrderClient(client).FetchReceipt(context.Background(), 501)

	require.NoError(t, err)
	assert.Equal(t, pdf, data)
}

func TestOrderClient_InvalidPaymentMethod(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := NewOrderClient(client).Finalize(context.Background(), 501, "CHEQUE")

	assert.True(t, checkout.IsRejected(err))
}

// ==================== Wire mapping ====================

func TestPaymentToWire(t *testing.T) {
	for _, m := range sales.AllPaymentMethods() {
		v, err := PaymentToWire(m)
		require.NoError(t, err, m)
		assert.NotEmpty(t, v)
	}
	v, _ := PaymentToWire(sales.PaymentInvoiceBilling)
	assert.Equal(t, "boleto", v)
}

func TestStatusFromWire(t *testing.T) {
	tests := map[string]sales.OrderStatus{
		"PENDENTE":   sales.OrderStatusDraft,
		"rascunho":   sales.OrderStatusDraft,
		"FINALIZADA": sales.OrderStatusFinalized,
		"CONCLUIDA":  sales.OrderStatusFinalized,
		" CANCELADA": sales.OrderStatusCancelled,
	}
	for wire, want := range tests {
		got, err := StatusFromWire(wire)
		require.NoError(t, err, wire)
		assert.Equal(t, want, got, wire)
	}

	_, err := StatusFromWire("")
	assert.ErrorIs(t, err, sales.ErrInvalidOrderStatus)
}

func TestRejectionReason(t *testing.T) {
	assert.Equal(t, "x", rejectionReason([]byte(`{"message":"x","fieldErrors":{"a":"b"}}`)))
	assert.Equal(t, "b", rejectionReason([]byte(`{"fieldErrors":{"a":"b"}}`)))
	assert.Empty(t, rejectionReason([]byte(`not json`)))
}
