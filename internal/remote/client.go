// Package remote talks to the RaniaMart HTTP API. It turns transport problems and non-2xx
// answers into domain errors and hides the API's inconsistent field spellings.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/fields"
	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/metrics"
)

const maxResponseBody = 4 << 20

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*response]
	log     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

type response struct {
	status int
	body   []byte
}

var errUpstream = errors.New("upstream server error")

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		log: logger.Component(nil, "remote"),
	}
	for _, opt := range opts {
		opt(c)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	c.cb = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "raniamart-api",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about the API's health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// GetCart fetches the buyer's cart.
func (c *Client) GetCart(ctx context.Context, token string) (domain.CartSnapshot, error) {
	resp, err := c.do(ctx, "get_cart", http.MethodGet, "/user/cart", token, nil, nil)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if err := c.check(resp, "Gagal memuat keranjang"); err != nil {
		return domain.CartSnapshot{}, err
	}

	obj, err := fields.Decode(resp.body)
	if err != nil {
		return domain.CartSnapshot{}, domain.Internal("malformed cart response", err)
	}
	snap, err := c.parseSnapshot(fields.Unwrap(obj))
	if err != nil {
		return domain.CartSnapshot{}, domain.Internal("malformed cart response", err)
	}
	return snap, nil
}

func (c *Client) AddItem(ctx context.Context, token string, productID int64, qty int) (domain.MutationResult, error) {
	body := addItemRequest{ProductID: productID, Qty: qty}
	return c.mutate(ctx, "add_item", http.MethodPost, "/user/cart/items", token, body, "Gagal menambahkan ke cart")
}

func (c *Client) SetQuantity(ctx context.Context, token string, productID int64, qty int) (domain.MutationResult, error) {
	body := setQuantityRequest{Qty: qty}
	return c.mutate(ctx, "set_quantity", http.MethodPatch, itemPath(productID), token, body, "Gagal update qty")
}

func (c *Client) RemoveItem(ctx context.Context, token string, productID int64) (domain.MutationResult, error) {
	return c.mutate(ctx, "remove_item", http.MethodDelete, itemPath(productID), token, nil, "Gagal hapus item")
}

// Checkout submits the order and returns the receipt payload exactly as the server sent it.
// idempotencyKey lets the server recognise a manual retry of the same order.
func (c *Client) Checkout(ctx context.Context, token string, req CheckoutRequest, idempotencyKey string) (json.RawMessage, error) {
	var header map[string]string
	if idempotencyKey != "" {
		header = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	resp, err := c.do(ctx, "checkout", http.MethodPost, "/user/checkout", token, req, header)
	if err != nil {
		return nil, err
	}
	if err := c.check(resp, "Checkout gagal"); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.body), nil
}

// Products returns the public catalog listing.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	resp, err := c.do(ctx, "products", http.MethodGet, "/home", "", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := c.check(resp, "Gagal memuat produk"); err != nil {
		return nil, err
	}
	obj, err := fields.Decode(resp.body)
	if err != nil {
		return nil, domain.Internal("malformed catalog response", err)
	}
	return c.parseProducts(fields.Unwrap(obj)), nil
}

func (c *Client) mutate(ctx context.Context, op, method, path, token string, body any, failMsg string) (domain.MutationResult, error) {
	resp, err := c.do(ctx, op, method, path, token, body, nil)
	if err != nil {
		return domain.MutationResult{}, err
	}
	if err := c.check(resp, failMsg); err != nil {
		return domain.MutationResult{}, err
	}

	// a success with an unreadable body still succeeded; the caller re-fetches
	obj, err := fields.Decode(resp.body)
	if err != nil {
		return domain.MutationResult{}, nil
	}
	res, err := c.parseMutation(fields.Unwrap(obj))
	if err != nil {
		c.log.WarnContext(ctx, "ignoring malformed mutation response", "op", op, "error", err)
		return domain.MutationResult{}, nil
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body any, header map[string]string) (*response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, domain.Internal("encode request", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, domain.Internal("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.cb.Execute(func() (*response, error) {
		r, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer r.Body.Close()

		data, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		out := &response{status: r.StatusCode, body: data}
		if r.StatusCode >= http.StatusInternalServerError {
			return out, errUpstream
		}
		return out, nil
	})

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.status)
	}
	metrics.RemoteRequests.WithLabelValues(op, status).Observe(float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil, errors.Is(err, errUpstream):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.log.WarnContext(ctx, "remote call short-circuited", "op", op, "error", err)
		return nil, &domain.Error{Kind: domain.KindNetworkFailure, Message: "RaniaMart API is unavailable", Err: err}
	default:
		c.log.WarnContext(ctx, "remote call failed", "op", op, "error", err)
		return nil, domain.NetworkFailure(err)
	}
}

// check converts a non-2xx response into a domain error carrying the server's message.
func (c *Client) check(resp *response, fallback string) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	msg := fallback
	if obj, err := fields.Decode(resp.body); err == nil {
		if m := obj.String(errorMessage); m != "" {
			msg = m
		}
	}
	if resp.status == http.StatusUnauthorized {
		return domain.Unauthorized(msg)
	}
	return domain.Rejected(resp.status, msg)
}
