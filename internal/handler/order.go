package handler

import (
	"net/http"
	"strconv"

	"github.com/xenking/shop-orders/internal/domain/apperr"
	"github.com/xenking/shop-orders/internal/domain/order"
)

// PlaceOrder handles POST /orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body PlaceOrderBody
	if !h.decode(w, r, &body) {
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:          body.UserID,
		ProductIDs:      body.Products,
		Shipping:        body.Shipping,
		GeneralDiscount: body.GeneralDiscount,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, h.toOrder(*o))
}

// ListOrders handles GET /orders?page=&limit=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), order.ListParams{Page: page, Limit: limit})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = h.toOrder(o)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.toOrder(*o))
}

// UpdateStatus handles PUT /orders/status/{id}.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body UpdateStatusBody
	if !h.decode(w, r, &body) {
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.toOrder(*o))
}

// UpdateOrder handles PUT /orders/update/{id}.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body UpdateOrderBody
	if !h.decode(w, r, &body) {
		return
	}
	o, err := h.orders.UpdateOrder(r.Context(), id, order.UpdateOrderRequest{
		Total:           *body.Total,
		Shipping:        *body.Shipping,
		GeneralDiscount: body.GeneralDiscount,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.toOrder(*o))
}

// DeleteOrder handles DELETE /orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads an optional positive integer query parameter. Zero means
// absent.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		writeError(w, r, http.StatusBadRequest, apperr.KindInvalidRequest.String(), name+" must be a positive integer")
		return 0, false
	}
	return v, true
}
