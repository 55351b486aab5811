// Package handler exposes the order workflow, order administration and the
// product catalog over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
)

// OrderService is the order workflow as seen by the HTTP layer.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	UpdateDetail(ctx context.Context, id string, req order.UpdateDetailRequest) (*order.Detail, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context, params order.ListParams) ([]order.Order, error)
	GetDetail(ctx context.Context, id string) (*order.Detail, error)
	UpdateStatus(ctx context.Context, id, status string) (*order.Order, error)
	UpdateOrder(ctx context.Context, id string, req order.UpdateOrderRequest) (*order.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

var _ OrderService = (*order.Service)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the HTTP API, delegating business logic to the order service
// and the product catalog.
type Handler struct {
	orders       OrderService
	products     product.Catalog
	validate     *validator.Validate
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	orders OrderService,
	products product.Catalog,
) *Handler {
	return &Handler{
		orders:       orders,
		products:     products,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

var (
	anyRole   = []user.Role{user.RoleUser, user.RoleAdmin, user.RoleSuperAdmin}
	adminRole = []user.Role{user.RoleAdmin, user.RoleSuperAdmin}
)

// Routes mounts every endpoint on a chi router. Order and detail routes are
// guarded by auth; product reads are public.
func (h *Handler) Routes(auth *Auth) chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.With(auth.Require(anyRole...)).Post("/orders", h.PlaceOrder)
		r.With(auth.Require(adminRole...)).Get("/orders", h.ListOrders)
		r.With(auth.Require(anyRole...)).Get("/orders/{id}", h.GetOrder)
		r.With(auth.Require(adminRole...)).Put("/orders/status/{id}", h.UpdateStatus)
		r.With(auth.Require(adminRole...)).Put("/orders/update/{id}", h.UpdateOrder)
		r.With(auth.Require(adminRole...)).Delete("/orders/{id}", h.DeleteOrder)

		r.With(auth.Require(adminRole...)).Put("/detail/{id}", h.UpdateDetail)
		r.With(auth.Require(anyRole...)).Get("/detail/{id}", h.GetDetail)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}
