package handler

import (
	"net/http"

	"github.com/xenking/shop-orders/internal/domain/order"
)

// UpdateDetail handles PUT /detail/{id}.
func (h *Handler) UpdateDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body UpdateDetailBody
	if !h.decode(w, r, &body) {
		return
	}

	d, err := h.orders.UpdateDetail(r.Context(), id, order.UpdateDetailRequest{
		NewProductID: body.NewProduct,
		Quantity:     body.Quantity,
		Discount:     body.Discount,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.toDetail(*d))
}

// GetDetail handles GET /detail/{id}.
func (h *Handler) GetDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.orders.GetDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.toDetail(*d))
}
