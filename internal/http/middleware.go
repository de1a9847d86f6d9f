package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/raniamart/storefront/internal/logger"
)

// RequestLogger stores a logger tagged with the chi request id in the request context, and
// echoes the id back so the UI can quote it.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = logger.Base()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				l = l.With("request_id", reqID)
				w.Header().Set(middleware.RequestIDHeader, reqID)
			}
			next.ServeHTTP(w, r.WithContext(logger.WithCtx(r.Context(), l)))
		})
	}
}
