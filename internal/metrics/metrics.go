package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CartRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_refreshes_total",
			Help: "Cart refreshes by outcome",
		},
		[]string{"outcome"},
	)

	Checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout submissions by outcome",
		},
		[]string{"outcome"},
	)

	ReceiptsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_receipts_rendered_total",
			Help: "Receipt documents rendered by format",
		},
		[]string{"format"},
	)

	RemoteRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_remote_request_duration_ms",
			Help:    "Duration of calls to the RaniaMart API in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3200},
		},
		[]string{"operation", "status"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests served to the UI",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_ms",
			Help:    "Duration of HTTP requests served to the UI in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)
)

// Outcome turns an error into a low-cardinality label value.
func Outcome(err error, kind func(error) string) string {
	if err == nil {
		return "ok"
	}
	return kind(err)
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(float64(time.Since(start).Milliseconds()))
	})
}
