package http

import (
	"context"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/receipt"
)

type ReceiptHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewReceiptHandler(svc CheckoutService, timeout time.Duration) *ReceiptHandler {
	return &ReceiptHandler{checkout: svc, timeout: timeout}
}

// GET /api/v1/receipts/last
func (h *ReceiptHandler) Last(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.checkout.LastReceipt()
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "no receipt in this session")
		return
	}
	rec.Raw = nil
	respondJSON(w, http.StatusOK, rec)
}

// GET /api/v1/receipts/{invoice_no}?format=pdf|txt
func (h *ReceiptHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	format, err := receipt.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}

	doc, err := h.checkout.Regenerate(ctx, chi.URLParam(r, "invoice_no"), format)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		logger.FromCtx(r.Context()).WarnContext(r.Context(), "failed to write receipt", "error", err)
	}
}
