package http

import (
	"context"
	"net/http"
	"time"

	"github.com/raniamart/storefront/internal/domain"
)

type ProductService interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

type ProductHandler struct {
	products ProductService
	timeout  time.Duration
}

func NewProductHandler(products ProductService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

type ProductResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	ImageURL string `json:"image_url"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// GET /api/v1/products
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.products.Products(ctx)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	products := make([]ProductResponse, len(list))
	for i, p := range list {
		products[i] = ProductResponse{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			ImageURL: p.ImageRef,
		}
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}
