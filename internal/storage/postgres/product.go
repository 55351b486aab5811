package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-orders/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, stock, category_id, img_url, created_at`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	// Rows are locked in id order so that concurrent orders over overlapping
	// products queue instead of deadlocking. The stock filter is re-evaluated
	// after the lock is acquired.
	getProductsInStockSQL = `SELECT ` + productColumns + ` FROM products
		WHERE id = ANY($1) AND stock > 0
		ORDER BY id
		FOR UPDATE`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY name, id LIMIT $1 OFFSET $2`

	reserveStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	releaseStockSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Catalog    = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and product.Catalog. When
// bound to a transaction its stock mutations join that transaction.
type ProductRepository struct {
	q querier
}

// NewProductRepository returns a ProductRepository reading through the pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{q: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.q.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, mapError(err, "getting product", product.Entity, id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		return nil, mapError(err, "getting product", product.Entity, id)
	}
	return &p, nil
}

// GetByIDs returns the requested products that have stock left, locking them
// for the rest of the transaction.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, getProductsInStockSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return products, nil
}

// List returns a page of products ordered by name.
func (r *ProductRepository) List(ctx context.Context, page product.Page) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, listProductsSQL, page.Limit, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Reserve decrements stock by quantity in a single conditional update.
func (r *ProductRepository) Reserve(ctx context.Context, id string, quantity int) error {
	tag, err := r.q.Exec(ctx, reserveStockSQL, id, quantity)
	if err != nil {
		return mapError(err, "reserving stock", product.Entity, id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.missingOr(ctx, id, product.ErrInsufficientStock)
}

// Release increments stock by quantity.
func (r *ProductRepository) Release(ctx context.Context, id string, quantity int) error {
	tag, err := r.q.Exec(ctx, releaseStockSQL, id, quantity)
	if err != nil {
		return mapError(err, "releasing stock", product.Entity, id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.missingOr(ctx, id, nil)
}

// missingOr returns NotFound when the product does not exist and fallback
// otherwise.
func (r *ProductRepository) missingOr(ctx context.Context, id string, fallback error) error {
	var exists bool
	if err := r.q.QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
		return mapError(err, "checking product", product.Entity, id)
	}
	if !exists {
		return mapError(pgx.ErrNoRows, "checking product", product.Entity, id)
	}
	return fallback
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.CategoryID, &p.ImageURL, &p.CreatedAt,
	)
	return p, err
}
