package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/shop-orders/internal/domain/apperr"
	"github.com/xenking/shop-orders/internal/domain/order"
)

var detailCopyColumns = []string{"id", "order_id", "product_id", "quantity", "price", "discount", "status"}

const (
	getDetailForUpdateSQL = `SELECT id, order_id, product_id, quantity, price, discount, status, deleted_at
		FROM order_details
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`

	updateDetailSQL = `UPDATE order_details
		SET product_id = $2, quantity = $3, price = $4, discount = $5, status = $6
		WHERE id = $1 AND deleted_at IS NULL`
)

var _ order.DetailRepository = (*DetailRepository)(nil)

// DetailRepository implements order.DetailRepository.
type DetailRepository struct {
	q querier
}

// CreateBatch inserts details with COPY, preserving slice order.
func (r *DetailRepository) CreateBatch(ctx context.Context, details []order.Detail) error {
	if len(details) == 0 {
		return nil
	}
	_, err := r.q.CopyFrom(ctx, pgx.Identifier{"order_details"}, detailCopyColumns,
		pgx.CopyFromSlice(len(details), func(i int) ([]any, error) {
			d := details[i]
			// COPY uses the binary protocol, which needs real UUID values.
			ids := make([]uuid.UUID, 3)
			for j, s := range []string{d.ID, d.OrderID, d.ProductID} {
				id, err := uuid.Parse(s)
				if err != nil {
					return nil, apperr.Invalid("malformed identifier %q", s)
				}
				ids[j] = id
			}
			return []any{ids[0], ids[1], ids[2], d.Quantity, d.Price, d.Discount, string(d.Status)}, nil
		}),
	)
	return mapError(err, "creating order details", order.DetailEntity, details[0].OrderID)
}

// GetByID returns a live detail and locks its row.
func (r *DetailRepository) GetByID(ctx context.Context, id string) (*order.Detail, error) {
	rows, err := r.q.Query(ctx, getDetailForUpdateSQL, id)
	if err != nil {
		return nil, mapError(err, "getting order detail", order.DetailEntity, id)
	}
	d, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Detail, error) {
		var d order.Detail
		err := row.Scan(&d.ID, &d.OrderID, &d.ProductID, &d.Quantity, &d.Price, &d.Discount, &d.Status, &d.DeletedAt)
		return d, err
	})
	if err != nil {
		return nil, mapError(err, "getting order detail", order.DetailEntity, id)
	}
	return &d, nil
}

// Update writes the mutable columns of a live detail.
func (r *DetailRepository) Update(ctx context.Context, d *order.Detail) error {
	tag, err := r.q.Exec(ctx, updateDetailSQL, d.ID, d.ProductID, d.Quantity, d.Price, d.Discount, d.Status)
	if err != nil {
		return mapError(err, "updating order detail", order.DetailEntity, d.ID)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "updating order detail", order.DetailEntity, d.ID)
	}
	return nil
}
