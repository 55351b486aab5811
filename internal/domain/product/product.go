package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shop-orders/internal/domain/apperr"
)

// Entity is the name used in NotFound messages.
const Entity = "Product"

var (
	// ErrInsufficientStock is returned by Reserve when the product does not
	// hold enough units.
	ErrInsufficientStock error = &apperr.Error{Kind: apperr.KindInvalidRequest, Msg: "insufficient stock"}

	// ErrOutOfStock is returned when an order references products that are
	// missing or have no stock left.
	ErrOutOfStock error = &apperr.Error{Kind: apperr.KindInvalidRequest, Msg: "one or more items out of stock"}
)

// Product is a catalog item with an available stock counter.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  string
	ImageURL    string
	CreatedAt   time.Time
}

// Reader resolves products by identifier.
type Reader interface {
	// GetByID returns the product or an apperr NotFound error.
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products among ids that have stock > 0.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Ledger mutates stock. Implementations must make Reserve a single atomic
// check-and-decrement so that stock can never go negative.
type Ledger interface {
	Reserve(ctx context.Context, id string, quantity int) error
	Release(ctx context.Context, id string, quantity int) error
}

// Repository is the transaction-scoped product store used by the order workflow.
type Repository interface {
	Reader
	Ledger
}

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Catalog serves read-only product queries outside of order transactions.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, page Page) ([]Product, error)
}

// Adjust moves stock by delta units: positive deltas reserve, negative deltas
// release, zero is a no-op.
func Adjust(ctx context.Context, l Ledger, id string, delta int) error {
	switch {
	case delta > 0:
		return l.Reserve(ctx, id, delta)
	case delta < 0:
		return l.Release(ctx, id, -delta)
	}
	return nil
}
