package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
)

var _ order.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork opens READ COMMITTED transactions on the pool. Stock safety comes
// from row locks and conditional updates, not from the isolation level.
type UnitOfWork struct {
	pool  *pgxpool.Pool
	topic string
}

// NewUnitOfWork returns a UnitOfWork whose outbox writes target topic.
func NewUnitOfWork(pool *pgxpool.Pool, topic string) *UnitOfWork {
	return &UnitOfWork{pool: pool, topic: topic}
}

// Begin starts a transaction.
func (u *UnitOfWork) Begin(ctx context.Context) (order.Tx, error) {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{tx: tx, topic: u.topic}, nil
}

// Tx binds every repository to one pgx.Tx.
type Tx struct {
	tx    pgx.Tx
	topic string
}

func (t *Tx) Users() user.Reader              { return &UserRepository{q: t.tx} }
func (t *Tx) Products() product.Repository    { return &ProductRepository{q: t.tx} }
func (t *Tx) Orders() order.Repository        { return &OrderRepository{q: t.tx} }
func (t *Tx) Details() order.DetailRepository { return &DetailRepository{q: t.tx} }
func (t *Tx) Events() order.EventWriter       { return &OutboxWriter{q: t.tx, topic: t.topic} }

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction. It returns nil once the transaction has
// already been committed or rolled back.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
