package order

import (
	"context"

	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
)

// UnitOfWork opens transactions that span every store the workflow touches.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single atomic unit of work. Rollback after Commit is a no-op that
// returns nil, so callers can always defer it.
type Tx interface {
	Users() user.Reader
	Products() product.Repository
	Orders() Repository
	Details() DetailRepository
	Events() EventWriter

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
