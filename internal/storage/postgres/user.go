package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/shop-orders/internal/domain/user"
)

const (
	getUserByIDSQL = `SELECT id, email, name, role, created_at FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (id, email, name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, role = EXCLUDED.role`
)

var _ user.Reader = (*UserRepository)(nil)

// UserRepository reads users.
type UserRepository struct {
	q querier
}

// GetByID returns a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	rows, err := r.q.Query(ctx, getUserByIDSQL, id)
	if err != nil {
		return nil, mapError(err, "getting user", user.Entity, id)
	}
	u, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (user.User, error) {
		var u user.User
		err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, mapError(err, "getting user", user.Entity, id)
	}
	return &u, nil
}
