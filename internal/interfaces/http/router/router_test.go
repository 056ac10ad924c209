package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/salesdesk/internal/infrastructure/config"
	"github.com/erp/salesdesk/internal/infrastructure/telemetry"
	"github.com/erp/salesdesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, body))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.Register(group)
	assert.Len(t, r.registrars, 1)
	r.Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterUseOnlyAppliesToAPI(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("scope"))
	})

	group := NewDomainGroup("/test")
	group.GET("/scope", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("scope"))
	})

	NewRouter(engine).
		Use(func(c *gin.Context) { c.Set("scope", "api") }).
		Register(group).
		Setup()

	assert.Equal(t, "api", serve(engine, http.MethodGet, "/api/v1/test/scope", nil).Body.String())
	assert.Empty(t, serve(engine, http.MethodGet, "/health", nil).Body.String())
}

func TestDomainGroup(t *testing.T) {
	g := NewDomainGroup("/system")

	handler := func(c *gin.Context) {
		c.String(http.StatusOK, c.Request.Method+":"+c.GetString("group"))
	}
	g.Use(func(c *gin.Context) { c.Set("group", "system") }).
		GET("/items", handler).
		POST("/items", handler).
		PUT("/items/:id", handler).
		DELETE("/items/:id", handler)

	engine := gin.New()
	g.RegisterRoutes(engine.Group("/api/v1"))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/system/items"},
		{http.MethodPost, "/api/v1/system/items"},
		{http.MethodPut, "/api/v1/system/items/1"},
		{http.MethodDelete, "/api/v1/system/items/1"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.method+":system", w.Body.String())
		})
	}
}

func testEngine(t *testing.T, mutate func(*EngineConfig)) *gin.Engine {
	t.Helper()
	cfg := EngineConfig{
		HTTP: config.HTTPConfig{
			MaxBodySize:      64,
			CORSAllowOrigins: []string{"http://caixa.local"},
		},
		ServiceName: "salesdesk-test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	engine := NewEngine(cfg)
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	engine.POST("/api/v1/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestNewEngine_Middleware(t *testing.T) {
	engine := testEngine(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://caixa.local")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "http://caixa.local", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(engine, http.MethodPost, "/api/v1/echo", strings.NewReader(strings.Repeat("x", 100)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewEngine_NoRoute(t *testing.T) {
	w := serve(testEngine(t, nil), http.MethodGet, "/api/v1/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ERR_NOT_FOUND"`)
	assert.Contains(t, w.Body.String(), w.Header().Get(middleware.RequestIDHeader))
}

func TestNewEngine_Metrics(t *testing.T) {
	metrics := telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
	engine := testEngine(t, func(cfg *EngineConfig) {
		cfg.Metrics = metrics
	})

	require.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/ping", nil).Code)
	require.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/missing/42", nil).Code)

	w := serve(engine, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `salesdesk_http_requests_total{method="GET",route="/api/v1/ping",status="200"} 1`)
	assert.Contains(t, body, `salesdesk_http_requests_total{method="GET",route="unknown",status="404"} 1`)
}

func TestNewEngine_WithoutMetrics(t *testing.T) {
	w := serve(testEngine(t, nil), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewEngine_RateLimitSkipsMetrics(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Close)

	engine := testEngine(t, func(cfg *EngineConfig) {
		cfg.Metrics = telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
		cfg.RateLimiter = limiter
	})

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodGet, "/api/v1/ping", nil).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/metrics", nil).Code)
}
