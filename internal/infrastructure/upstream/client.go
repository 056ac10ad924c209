// Package upstream talks to the ERP REST API that owns products, clients and
// orders. Every failure is reported as a *checkout.RemoteError.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Config holds the upstream client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Token is sent as a bearer token when set
	Token string
	// BreakerFailures is the number of consecutive transport failures that opens the breaker
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before a probe request
	BreakerCooldown time.Duration
	UserAgent       string
}

// DefaultConfig returns the default upstream settings
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
		UserAgent:       "salesdesk/1.0",
	}
}

// Metrics receives upstream call measurements
type Metrics interface {
	ObserveUpstream(operation, status string, d time.Duration)
	SetBreakerState(name string, state int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveUpstream(string, string, time.Duration) {}
func (nopMetrics) SetBreakerState(string, int) {}

// Client is a JSON HTTP client guarded by a circuit breaker. It never retries.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      string
	userAgent  string
	breaker    *gobreaker.CircuitBreaker[*Response]
	logger     *zap.Logger
	metrics    Metrics
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the ERP API
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaults.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaults.BreakerCooldown
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:   base,
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		logger:    zap.NewNop(),
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "erp-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// business rejections prove the upstream is healthy
		IsSuccessful: func(err error) bool {
			return err == nil || checkout.IsRejected(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.SetBreakerState(name, int(to))
			c.logger.Warn("Upstream circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	c.metrics.SetBreakerState("erp-api", int(gobreaker.StateClosed))

	return c, nil
}

// Request is one call to the ERP API
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	Accept string
}

// Response is a successful (2xx) response
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Do executes req under the circuit breaker. operation labels metrics and logs.
func (c *Client) Do(ctx context.Context, operation string, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.do(ctx, req)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.ObserveUpstream(operation, "breaker_open", elapsed)
			return nil, checkout.NewUnavailable(err)
		}
		remoteErr := classify(err)
		c.metrics.ObserveUpstream(operation, strings.ToLower(string(remoteErr.Kind)), elapsed)
		c.logger.Debug("Upstream call failed",
			zap.String("operation", operation),
			zap.String("kind", string(remoteErr.Kind)),
			zap.String("reason", remoteErr.Reason),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, remoteErr
	}

	c.metrics.ObserveUpstream(operation, "ok", elapsed)
	return resp, nil
}

// getJSON performs a GET and decodes the body into out
func (c *Client) getJSON(ctx context.Context, operation, path string, out interface{}) error {
	resp, err := c.Do(ctx, operation, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	u, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, checkout.NewUnavailable(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, checkout.NewUnavailable(fmt.Errorf("reading response body: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, statusError(httpResp.StatusCode, data)
	}

	return &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        data,
		Duration:    time.Since(start),
	}, nil
}

func (c *Client) buildURL(path string, query url.Values) (*url.URL, error) {
	u, err := c.baseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u, nil
}

// errorBody is the error payload returned by the ERP API
type errorBody struct {
	Message     string            `json:"message"`
	Error       string            `json:"error"`
	FieldErrors map[string]string `json:"fieldErrors"`
}

// statusError classifies a non-2xx response
func statusError(status int, body []byte) *checkout.RemoteError {
	switch {
	case status >= 500,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusTooManyRequests:
		return checkout.NewUnavailable(fmt.Errorf("upstream returned status %d", status))
	}

	reason := rejectionReason(body)
	if reason == "" {
		reason = "request rejected with status " + strconv.Itoa(status)
	}
	return checkout.NewRejected(reason)
}

// rejectionReason extracts message, then error, then the first field error
func rejectionReason(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	if eb.Error != "" {
		return eb.Error
	}
	if len(eb.FieldErrors) > 0 {
		// smallest field name wins
		var field string
		for k := range eb.FieldErrors {
			if field == "" || k < field {
				field = k
			}
		}
		return eb.FieldErrors[field]
	}
	return ""
}

func decode(resp *Response, out interface{}) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return checkout.NewUnavailable(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func classify(err error) *checkout.RemoteError {
	var remoteErr *checkout.RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr
	}
	return checkout.NewUnavailable(err)
}
