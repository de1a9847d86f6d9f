package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/receipt"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Base().Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleCoreError converts an error from the cart or checkout core into an HTTP response.
func handleCoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   = domain.KindOf(err).String()
		msg    = domain.Message(err)
	)

	switch domain.KindOf(err) {
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindValidation:
		status = http.StatusBadRequest
		if errors.Is(err, receipt.ErrNotFound) {
			status, code = http.StatusNotFound, "not_found"
		}
	case domain.KindBusy:
		status = http.StatusConflict
	case domain.KindRemoteRejected:
		status = http.StatusBadGateway
		var de *domain.Error
		if errors.As(err, &de) && de.Status >= 400 && de.Status < 500 {
			status = de.Status
		}
	case domain.KindNetworkFailure:
		status = http.StatusGatewayTimeout
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status, code = http.StatusServiceUnavailable, "service_unavailable"
		}
	default:
		status, msg = http.StatusInternalServerError, "internal server error"
		logger.FromCtx(r.Context()).ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	respondError(w, status, code, msg)
}

func productIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
