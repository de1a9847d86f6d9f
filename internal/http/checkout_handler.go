package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/raniamart/storefront/internal/checkout"
	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/receipt"
)

type CheckoutService interface {
	Submit(ctx context.Context, form domain.CheckoutForm, cart domain.CartSnapshot) (checkout.Result, error)
	Regenerate(ctx context.Context, invoiceNo string, format receipt.Format) (receipt.Document, error)
	LastReceipt() (domain.ReceiptRecord, bool)
}

type CheckoutHandler struct {
	checkout CheckoutService
	cart     CartService
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, cart CartService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		cart:     cart,
		timeout:  timeout,
	}
}

type ShippingOptionDTO struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Fee   int64  `json:"fee"`
}

type CheckoutOptionsDTO struct {
	ShippingServices       []ShippingOptionDTO `json:"shipping_services"`
	PaymentMethods         []string            `json:"payment_methods"`
	DefaultShippingService string              `json:"default_shipping_service"`
	DefaultPaymentMethod   string              `json:"default_payment_method"`
}

type CheckoutRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
	ShippingService string `json:"shipping_service"`
	PaymentMethod   string `json:"payment_method"`
	BuyerNote       string `json:"buyer_note"`
}

type DocumentDTO struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type CheckoutResponseDTO struct {
	Receipt  domain.ReceiptRecord `json:"receipt"`
	Document *DocumentDTO         `json:"document,omitempty"`
	Warning  string               `json:"warning,omitempty"`
}

// GET /api/v1/checkout/options
func (h *CheckoutHandler) Options(w http.ResponseWriter, r *http.Request) {
	opts := CheckoutOptionsDTO{
		PaymentMethods:         domain.PaymentMethods,
		DefaultShippingService: domain.DefaultShippingService.String(),
		DefaultPaymentMethod:   domain.DefaultPaymentMethod,
	}
	for _, s := range domain.ShippingServices {
		fee, _ := s.Fee()
		opts.ShippingServices = append(opts.ShippingServices, ShippingOptionDTO{
			Value: s.String(),
			Label: s.String() + " (" + receipt.Rupiah(fee) + ")",
			Fee:   fee,
		})
	}
	respondJSON(w, http.StatusOK, opts)
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	form := domain.NewCheckoutForm()
	form.ShippingAddress = req.ShippingAddress
	form.BuyerNote = req.BuyerNote
	if req.ShippingService != "" {
		form.ShippingService = domain.ShippingService(req.ShippingService)
	}
	if req.PaymentMethod != "" {
		form.PaymentMethod = req.PaymentMethod
	}

	res, err := h.checkout.Submit(ctx, form, h.cart.Snapshot())
	if err != nil && res.Receipt.InvoiceNo == "" {
		handleCoreError(w, r, err)
		return
	}

	resp := CheckoutResponseDTO{Receipt: res.Receipt}
	resp.Receipt.Raw = nil
	if err != nil {
		// the order went through; only the document is missing
		resp.Warning = domain.Message(err)
	} else {
		resp.Document = &DocumentDTO{
			Name:        res.Document.Name,
			ContentType: res.Document.ContentType,
			URL:         receiptURL(res.Receipt.InvoiceNo, res.Document.ContentType),
		}
	}
	respondJSON(w, http.StatusCreated, resp)
}

func receiptURL(invoiceNo, contentType string) string {
	format := receipt.FormatPDF
	if contentType == receipt.FormatText.ContentType() {
		format = receipt.FormatText
	}
	return "/api/v1/receipts/" + url.PathEscape(invoiceNo) + "?format=" + string(format)
}
