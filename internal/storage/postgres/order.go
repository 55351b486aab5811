package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
)

const (
	orderColumns = `id, user_id, total, shipping, general_discount, date, status, deleted_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND deleted_at IS NULL`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE deleted_at IS NULL
		ORDER BY date DESC, id DESC
		LIMIT $1 OFFSET $2`

	detailsWithProductsSQL = `SELECT d.id, d.order_id, d.product_id, d.quantity, d.price, d.discount, d.status, d.deleted_at,
			p.id, p.name, p.description, p.price, p.stock, p.category_id, p.img_url, p.created_at
		FROM order_details d
		JOIN products p ON p.id = d.product_id
		WHERE d.order_id = ANY($1) AND d.deleted_at IS NULL
		ORDER BY d.seq`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1 AND deleted_at IS NULL`

	updateOrderAmountsSQL = `UPDATE orders SET total = $2, shipping = $3, general_discount = $4
		WHERE id = $1 AND deleted_at IS NULL`

	softDeleteOrderSQL = `UPDATE orders SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	softDeleteDetailsSQL = `UPDATE order_details SET deleted_at = $2 WHERE order_id = $1 AND deleted_at IS NULL`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	q querier
}

// Create inserts the order row. Details are written by DetailRepository.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.q.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.Total, o.Shipping, o.GeneralDiscount, o.Date, o.Status,
	)
	return mapError(err, "creating order", order.Entity, o.ID)
}

// GetByID returns a live order with its live details and their products.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.q.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, mapError(err, "getting order", order.Entity, id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		return nil, mapError(err, "getting order", order.Entity, id)
	}

	orders := []order.Order{o}
	if err := r.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns a page of live orders, newest first.
func (r *OrderRepository) List(ctx context.Context, params order.ListParams) ([]order.Order, error) {
	rows, err := r.q.Query(ctx, listOrdersSQL, params.Limit, params.Offset())
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) attachDetails(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Details = []order.Detail{}
	}

	rows, err := r.q.Query(ctx, detailsWithProductsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting order details: %w", err)
	}
	details, err := pgx.CollectRows(rows, scanDetailWithProduct)
	if err != nil {
		return fmt.Errorf("getting order details: %w", err)
	}
	for _, d := range details {
		i := index[d.OrderID]
		orders[i].Details = append(orders[i].Details, d)
	}
	return nil
}

// UpdateStatus sets the status of a live order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	return r.execOne(ctx, "updating order status", id, updateOrderStatusSQL, id, status)
}

// UpdateAmounts replaces the monetary snapshot of a live order.
func (r *OrderRepository) UpdateAmounts(ctx context.Context, id string, total, shipping decimal.Decimal, discount *decimal.Decimal) error {
	return r.execOne(ctx, "updating order", id, updateOrderAmountsSQL, id, total, shipping, discount)
}

// SoftDelete marks the order and its details deleted.
func (r *OrderRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if err := r.execOne(ctx, "deleting order", id, softDeleteOrderSQL, id, at); err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, softDeleteDetailsSQL, id, at); err != nil {
		return mapError(err, "deleting order details", order.Entity, id)
	}
	return nil
}

func (r *OrderRepository) execOne(ctx context.Context, op, id, sql string, args ...any) error {
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, op, order.Entity, id)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, op, order.Entity, id)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Total, &o.Shipping, &o.GeneralDiscount,
		&o.Date, &o.Status, &o.DeletedAt,
	)
	return o, err
}

func scanDetailWithProduct(row pgx.CollectableRow) (order.Detail, error) {
	var (
		d order.Detail
		p product.Product
	)
	err := row.Scan(
		&d.ID, &d.OrderID, &d.ProductID, &d.Quantity, &d.Price, &d.Discount, &d.Status, &d.DeletedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.ImageURL, &p.CreatedAt,
	)
	d.Product = &p
	return d, err
}
