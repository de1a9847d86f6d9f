package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/raniamart/storefront/internal/metrics"
)

type RouterConfig struct {
	Name               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Receipts *ReceiptHandler
	Session  *SessionHandler
	Products *ProductHandler
}

// NewRouter mounts the UI-facing API under /api/v1.
func NewRouter(cfg RouterConfig, h Handlers, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	r.Use(middleware.Compress(5))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.Session.Get)
			r.Post("/", h.Session.Create)
			r.Delete("/", h.Session.Delete)
		})
		r.Get("/products", h.Products.Get)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Get("/badge", h.Cart.Badge)
			r.Post("/items", h.Cart.AddItem)
			r.Patch("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/options", h.Checkout.Options)
			r.Post("/", h.Checkout.Submit)
		})
		r.Route("/receipts", func(r chi.Router) {
			r.Get("/last", h.Receipts.Last)
			r.Get("/{invoice_no}", h.Receipts.Download)
		})
	})

	return otelhttp.NewHandler(r, cfg.Name)
}
