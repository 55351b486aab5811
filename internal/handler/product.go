package handler

import (
	"net/http"

	"github.com/xenking/shop-orders/internal/domain/product"
)

const (
	defaultProductLimit = 20
	maxProductLimit     = 100
)

// ListProducts handles GET /products?page=&limit=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultProductLimit
	}
	limit = min(limit, maxProductLimit)

	products, err := h.products.List(r.Context(), product.Page{Page: page, Limit: limit})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = h.toProduct(p)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.toProduct(*p))
}
