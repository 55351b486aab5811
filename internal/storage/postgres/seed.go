package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
)

const upsertProductSQL = `INSERT INTO products (id, name, description, price, stock, category_id, img_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		stock = EXCLUDED.stock,
		category_id = EXCLUDED.category_id,
		img_url = EXCLUDED.img_url`

// Seed upserts users and products in a single transaction.
func Seed(ctx context.Context, pool *pgxpool.Pool, users []user.User, products []product.Product) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range users {
			batch.Queue(upsertUserSQL, u.ID, u.Email, u.Name, u.Role)
		}
		for _, p := range products {
			batch.Queue(upsertProductSQL, p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.ImageURL)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("seeding row %d: %w", i, err)
			}
		}
		return br.Close()
	})
}
