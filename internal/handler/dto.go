package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
)

// PlaceOrderBody is the body of POST /orders.
type PlaceOrderBody struct {
	UserID          string           `json:"userId" validate:"required,uuid"`
	Products        []string         `json:"products" validate:"required,min=1,dive,uuid"`
	Shipping        *decimal.Decimal `json:"shipping"`
	GeneralDiscount *decimal.Decimal `json:"generalDiscount"`
}

// UpdateDetailBody is the body of PUT /detail/{id}.
type UpdateDetailBody struct {
	NewProduct *string          `json:"newProduct" validate:"omitempty,uuid"`
	Quantity   *int             `json:"quantity" validate:"omitempty,gt=0"`
	Discount   *decimal.Decimal `json:"discount"`
}

// UpdateStatusBody is the body of PUT /orders/status/{id}.
type UpdateStatusBody struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderBody is the body of PUT /orders/update/{id}.
type UpdateOrderBody struct {
	Total           *decimal.Decimal `json:"total" validate:"required"`
	Shipping        *decimal.Decimal `json:"shipping" validate:"required"`
	GeneralDiscount *decimal.Decimal `json:"generalDiscount"`
}

type ProductResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	CategoryID  string    `json:"categoryId,omitempty"`
	ImageURL    string    `json:"imgUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type DetailResponse struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"orderId"`
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     float64          `json:"price"`
	Discount  *float64         `json:"discount"`
	Status    string           `json:"status"`
	Product   *ProductResponse `json:"product,omitempty"`
}

type OrderResponse struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Total           float64          `json:"total"`
	Shipping        float64          `json:"shipping"`
	GeneralDiscount *float64         `json:"generalDiscount"`
	Date            time.Time        `json:"date"`
	Status          string           `json:"status"`
	Details         []DetailResponse `json:"details"`
}

func optFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// toProduct converts a domain product into its response form. Relative
// image paths are prefixed with the configured imageBaseURL.
func (h *Handler) toProduct(p product.Product) ProductResponse {
	img := p.ImageURL
	if img != "" && h.imageBaseURL != "" && !isAbsoluteURL(img) {
		img = h.imageBaseURL + img
	}
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
		ImageURL:    img,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *Handler) toDetail(d order.Detail) DetailResponse {
	out := DetailResponse{
		ID:        d.ID,
		OrderID:   d.OrderID,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		Price:     d.Price.InexactFloat64(),
		Discount:  optFloat(d.Discount),
		Status:    string(d.Status),
	}
	if d.Product != nil {
		p := h.toProduct(*d.Product)
		out.Product = &p
	}
	return out
}

func (h *Handler) toOrder(o order.Order) OrderResponse {
	details := make([]DetailResponse, len(o.Details))
	for i, d := range o.Details {
		details[i] = h.toDetail(d)
	}
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Total:           o.Total.InexactFloat64(),
		Shipping:        o.Shipping.InexactFloat64(),
		GeneralDiscount: optFloat(o.GeneralDiscount),
		Date:            o.Date,
		Status:          string(o.Status),
		Details:         details,
	}
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
