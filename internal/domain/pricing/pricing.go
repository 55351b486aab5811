// Package pricing computes order line and order totals. All functions are pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-orders/internal/domain/apperr"
)

var (
	// DefaultShipping is charged when an order does not override shipping.
	DefaultShipping = decimal.RequireFromString("49.99")

	hundred = decimal.NewFromInt(100)
)

// LinePrice returns round((unit - unit*discount/100) * quantity, 2).
// A nil or zero discount leaves the unit price untouched.
func LinePrice(unit decimal.Decimal, quantity int, discount *decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	if discount == nil || discount.IsZero() {
		return unit.Mul(qty).Round(2)
	}
	off := unit.Mul(*discount).Div(hundred)
	return unit.Sub(off).Mul(qty).Round(2)
}

// Subtotal sums prices without rounding.
func Subtotal(prices []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	return sum
}

// OrderTotal returns round(Σprices × (1 − discount/100) + shipping, 2).
func OrderTotal(prices []decimal.Decimal, discount *decimal.Decimal, shipping decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1)
	if discount != nil {
		factor = factor.Sub(discount.Div(hundred))
	}
	return Subtotal(prices).Mul(factor).Add(shipping).Round(2)
}

// ValidateDiscount accepts nil or a percentage in [0, 100].
func ValidateDiscount(discount *decimal.Decimal) error {
	if discount == nil {
		return nil
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return apperr.Invalid("discount must be between 0 and 100, got %s", discount.String())
	}
	return nil
}

// ValidateQuantity accepts strictly positive quantities.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return apperr.Invalid("quantity must be greater than 0, got %d", quantity)
	}
	return nil
}

// ValidateAmount accepts non-negative monetary amounts such as shipping.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.Invalid("%s must not be negative", field)
	}
	return nil
}
