package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniamart/storefront/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, MaxFailures: 2, OpenTimeout: time.Minute},
		WithHTTPClient(srv.Client()))
	return c, srv
}

func TestGetCart_ParsesAlternateSpellings(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/user/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":{
			"Items":[
				{"ProductID":7,"NamaMenu":"Kopi Susu","Harga":"15000","Qty":2,"ImageID":"img-7"},
				{"product_id":9,"product_name":"Teh","unit_price":8000.0,"quantity":1},
				{"product_id":11,"name":"Ghost","price":1000,"qty":0}
			],
			"Subtotal":38000,"TotalQty":3}}`)
	})

	snap, err := c.GetCart(context.Background(), "tok")
	require.NoError(t, err)

	require.Len(t, snap.Lines, 2)
	assert.Equal(t, domain.CartLine{ProductID: 7, Name: "Kopi Susu", UnitPrice: 15000, Quantity: 2, ImageRef: srv.URL + "/home/img-7"}, snap.Lines[0])
	assert.Equal(t, domain.CartLine{ProductID: 9, Name: "Teh", UnitPrice: 8000, Quantity: 1}, snap.Lines[1])
	assert.Equal(t, int64(38000), snap.Subtotal)
	assert.Equal(t, 3, snap.TotalQuantity)
}

func TestGetCart_MissingItemsIsEmptyCart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	snap, err := c.GetCart(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestGetCart_ItemsNotAListIsInternal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items":"nope"}`)
	})

	_, err := c.GetCart(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrInternal)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"token expired"}`, domain.ErrUnauthorized, "token expired"},
		{"rejected with message", http.StatusConflict, `{"Message":"stok habis"}`, domain.ErrRemoteRejected, "stok habis"},
		{"rejected with error key", http.StatusBadRequest, `{"error":"qty invalid"}`, domain.ErrRemoteRejected, "qty invalid"},
		{"rejected without body", http.StatusBadRequest, ``, domain.ErrRemoteRejected, "Gagal menambahkan ke cart"},
		{"server error", http.StatusInternalServerError, `oops`, domain.ErrRemoteRejected, "Gagal menambahkan ke cart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.AddItem(context.Background(), "tok", 1, 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.wantMsg, domain.Message(err))

			var de *domain.Error
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.status, de.Status)
		})
	}
}

func TestTransportFailureIsNetworkFailure(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.GetCart(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
}

func TestTimeoutIsNetworkFailure(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.RemoveItem(ctx, "tok", 3)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusBadRequest)

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	})
	ctx := context.Background()

	// rejections are answers, not outages
	for range 3 {
		_, err := c.GetCart(ctx, "tok")
		assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, c.cb.State())

	status.Store(http.StatusBadGateway)
	for range 2 {
		_, err := c.GetCart(ctx, "tok")
		assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	}
	assert.Equal(t, gobreaker.StateOpen, c.cb.State())

	before := calls.Load()
	_, err := c.GetCart(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, before, calls.Load(), "open breaker must not reach the API")
}

func TestAddItem_ResponseShapes(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantSnapshot bool
		wantTotal    *int
	}{
		{"full snapshot", `{"items":[{"product_id":1,"qty":2,"harga":500}],"subtotal":1000,"total_qty":2}`, true, intPtr(2)},
		{"lines without totals", `{"items":[{"product_id":1,"qty":5,"harga":15000}]}`, false, nil},
		{"lines and count without subtotal", `{"items":[{"product_id":1,"qty":5,"harga":15000}],"total_qty":5}`, false, intPtr(5)},
		{"aggregate only", `{"message":"ok","total_qty":5}`, false, intPtr(5)},
		{"neither", `{"message":"ok"}`, false, nil},
		{"not json", `created`, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/user/cart/items", r.URL.Path)

				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]any{"product_id": float64(1), "qty": float64(2)}, body)

				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := c.AddItem(context.Background(), "tok", 1, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSnapshot, res.Snapshot != nil)
			assert.Equal(t, tt.wantTotal, res.TotalQuantity)
		})
	}
}

func TestSetQuantityAndRemove_UseItemPath(t *testing.T) {
	var got []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	_, err := c.SetQuantity(ctx, "tok", 42, 3)
	require.NoError(t, err)
	_, err = c.RemoveItem(ctx, "tok", 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"PATCH /user/cart/items/42", "DELETE /user/cart/items/42"}, got)
}

func TestCheckout_SendsIdempotencyKeyAndReturnsRawBody(t *testing.T) {
	payload := `{"data":{"invoice_no":"INV-1","total":60000}}`
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/checkout", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "req-9", r.Header.Get("X-Request-ID"))

		var req CheckoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, CheckoutRequest{
			ShippingAddress: "Jl. Melati 1",
			ShippingService: "JNE REG",
			PaymentMethod:   "QRIS",
			ShippingFee:     10000,
		}, req)
		_, _ = io.WriteString(w, payload)
	})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-9")
	raw, err := c.Checkout(ctx, "tok", CheckoutRequest{
		ShippingAddress: "Jl. Melati 1",
		ShippingService: "JNE REG",
		PaymentMethod:   "QRIS",
		ShippingFee:     10000,
	}, "key-1")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(raw))
}

func TestProducts_NoAuthHeader(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/home", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"AllListProduct":[
			{"ID":1,"Name":"Kopi","Price":15000,"ImageID":"a"},
			{"ID":0,"Name":"broken"}
		]}`)
	})

	products, err := c.Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Product{{ID: 1, Name: "Kopi", Price: 15000, ImageRef: srv.URL + "/home/a"}}, products)
}

func intPtr(n int) *int { return &n }
