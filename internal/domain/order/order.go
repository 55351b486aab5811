package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shop-orders/internal/domain/apperr"
	"github.com/xenking/shop-orders/internal/domain/product"
)

// Entity names used in NotFound messages.
const (
	Entity       = "Order"
	DetailEntity = "Detail"
)

// Status is the lifecycle state shared by orders and order details.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
	StatusReturn    Status = "return"
	StatusExchange  Status = "exchange"
)

// legacyReturn is the misspelled value older rows and clients may still send.
const legacyReturn = "retunr"

// ParseStatus converts a wire value to a Status. The legacy "retunr"
// spelling is accepted and normalized to StatusReturn.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == legacyReturn {
		return StatusReturn, nil
	}
	switch st := Status(v); st {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered,
		StatusCanceled, StatusReturn, StatusExchange:
		return st, nil
	}
	return "", apperr.Invalid("unknown status %q", s)
}

// Order is a customer purchase. Total is a snapshot computed at placement and
// only changes through an explicit UpdateOrder.
type Order struct {
	ID              string
	UserID          string
	Total           decimal.Decimal
	Shipping        decimal.Decimal
	GeneralDiscount *decimal.Decimal
	Date            time.Time
	Status          Status
	Details         []Detail
	DeletedAt       *time.Time
}

// Detail is one order line. Price always equals
// LinePrice(product price, Quantity, Discount) as of the last mutation.
type Detail struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Discount  *decimal.Decimal
	Status    Status
	DeletedAt *time.Time

	// Product is populated by reads that join the product row.
	Product *product.Product
}

// ListParams selects a page of orders. Page is 1-based.
type ListParams struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p ListParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Repository persists orders inside a transaction.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// GetByID returns a live order with its live details and their products.
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, params ListParams) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateAmounts(ctx context.Context, id string, total, shipping decimal.Decimal, discount *decimal.Decimal) error
	// SoftDelete marks the order and all of its details deleted.
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// DetailRepository persists order details inside a transaction.
type DetailRepository interface {
	CreateBatch(ctx context.Context, details []Detail) error
	// GetByID returns the live detail and locks it for the rest of the
	// transaction.
	GetByID(ctx context.Context, id string) (*Detail, error)
	Update(ctx context.Context, d *Detail) error
}
