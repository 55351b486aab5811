package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/shop-orders/internal/domain/apperr"
)

func pct(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestLinePrice(t *testing.T) {
	unit := decimal.NewFromInt(100)

	tests := []struct {
		name     string
		unit     decimal.Decimal
		qty      int
		discount *decimal.Decimal
		want     string
	}{
		{name: "ten percent off two", unit: unit, qty: 2, discount: pct("10"), want: "180.00"},
		{name: "no discount", unit: unit, qty: 2, discount: nil, want: "200.00"},
		{name: "zero discount same as none", unit: unit, qty: 2, discount: pct("0"), want: "200.00"},
		{name: "full discount", unit: unit, qty: 3, discount: pct("100"), want: "0"},
		{name: "rounds half up", unit: decimal.RequireFromString("10.005"), qty: 1, discount: nil, want: "10.01"},
		{name: "fractional discount", unit: decimal.RequireFromString("19.99"), qty: 3, discount: pct("12.5"), want: "52.47"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LinePrice(tt.unit, tt.qty, tt.discount)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestLinePrice_ZeroAndNilAgree(t *testing.T) {
	unit := decimal.RequireFromString("33.33")
	for qty := 1; qty <= 5; qty++ {
		assert.True(t, LinePrice(unit, qty, nil).Equal(LinePrice(unit, qty, pct("0"))))
	}
}

func TestOrderTotal(t *testing.T) {
	prices := []decimal.Decimal{
		decimal.RequireFromString("10.00"),
		decimal.RequireFromString("20.00"),
	}

	tests := []struct {
		name     string
		discount *decimal.Decimal
		shipping decimal.Decimal
		want     string
	}{
		{name: "default shipping", discount: nil, shipping: DefaultShipping, want: "79.99"},
		{name: "discount before shipping", discount: pct("10"), shipping: DefaultShipping, want: "76.99"},
		{name: "free shipping", discount: pct("50"), shipping: decimal.Zero, want: "15.00"},
		{name: "rounded to cents", discount: pct("33"), shipping: decimal.RequireFromString("0.005"), want: "20.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OrderTotal(prices, tt.discount, tt.shipping)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestValidateDiscount(t *testing.T) {
	assert.NoError(t, ValidateDiscount(nil))
	assert.NoError(t, ValidateDiscount(pct("0")))
	assert.NoError(t, ValidateDiscount(pct("100")))
	assert.ErrorIs(t, ValidateDiscount(pct("-1")), apperr.ErrInvalidRequest)
	assert.ErrorIs(t, ValidateDiscount(pct("100.01")), apperr.ErrInvalidRequest)
}

func TestValidateQuantity(t *testing.T) {
	assert.NoError(t, ValidateQuantity(1))
	assert.ErrorIs(t, ValidateQuantity(0), apperr.ErrInvalidRequest)
	assert.ErrorIs(t, ValidateQuantity(-3), apperr.ErrInvalidRequest)
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount("shipping", decimal.Zero))
	assert.ErrorIs(t, ValidateAmount("shipping", decimal.NewFromInt(-1)), apperr.ErrInvalidRequest)
}
