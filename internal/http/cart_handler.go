package http

import (
	"context"
	"net/http"
	"time"

	"github.com/raniamart/storefront/internal/domain"
)

// CartService is the cart synchronizer as the handlers see it.
type CartService interface {
	Snapshot() domain.CartSnapshot
	Badge() int
	Stale() bool
	Pending() []domain.PendingMutation
	Refresh(ctx context.Context) (domain.CartSnapshot, error)
	AddItem(ctx context.Context, productID int64, qty int) (domain.CartSnapshot, error)
	SetQuantity(ctx context.Context, productID int64, qty int) (domain.CartSnapshot, error)
	RemoveItem(ctx context.Context, productID int64) (domain.CartSnapshot, error)
	Clear()
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
}

func NewCartHandler(cart CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

// AddItemRequestDTO leaves Quantity nil when the field is absent; only then does it default to 1.
type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Lines         []domain.CartLine `json:"lines"`
	Subtotal      int64             `json:"subtotal"`
	TotalQuantity int               `json:"total_quantity"`
	Badge         int               `json:"badge"`
	Stale         bool              `json:"stale"`
	// Pending lists product ids whose controls should stay disabled.
	Pending []int64 `json:"pending"`
	Warning string  `json:"warning,omitempty"`
}

type BadgeResponseDTO struct {
	TotalQuantity int `json:"total_quantity"`
}

func (h *CartHandler) cartResponse(snap domain.CartSnapshot) CartResponseDTO {
	pending := h.cart.Pending()
	ids := make([]int64, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ProductID)
	}
	return CartResponseDTO{
		Lines:         snap.Lines,
		Subtotal:      snap.Subtotal,
		TotalQuantity: snap.TotalQuantity,
		Badge:         h.cart.Badge(),
		Stale:         h.cart.Stale(),
		Pending:       ids,
	}
}

// GET /api/v1/cart
// A failed refresh still answers with the last known cart, flagged stale.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap, err := h.cart.Refresh(ctx)
	resp := h.cartResponse(snap)
	if err != nil {
		resp.Stale = true
		resp.Warning = domain.Message(err)
	}
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	snap, err := h.cart.AddItem(ctx, req.ProductID, qty)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.cartResponse(snap))
}

// PATCH /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snap, err := h.cart.SetQuantity(ctx, productID, req.Quantity)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(snap))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	snap, err := h.cart.RemoveItem(ctx, productID)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(snap))
}

// DELETE /api/v1/cart
// Only the local copy is cleared; the server cart is untouched.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	respondJSON(w, http.StatusOK, h.cartResponse(h.cart.Snapshot()))
}

// GET /api/v1/cart/badge
func (h *CartHandler) Badge(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, BadgeResponseDTO{TotalQuantity: h.cart.Badge()})
}
