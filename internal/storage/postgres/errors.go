package postgres

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/shop-orders/internal/domain/apperr"
	"github.com/xenking/shop-orders/internal/domain/product"
)

const stockConstraint = "products_stock_non_negative"

// mapError converts driver errors into apperr kinds. Unrecognised errors are
// wrapped with op for logging and stay unclassified.
func mapError(err error, op, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Conflict(fmt.Sprintf("%s already exists", entity), err)
		case pgerrcode.CheckViolation:
			if pgErr.ConstraintName == stockConstraint {
				return product.ErrInsufficientStock
			}
			return apperr.Invalid("%s violates constraint %s", entity, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return apperr.Invalid("%s references a missing record", entity)
		case pgerrcode.InvalidTextRepresentation:
			return apperr.NotFound(entity, id)
		}
	}
	return fmt.Errorf("%s %q: %w", op, id, err)
}
