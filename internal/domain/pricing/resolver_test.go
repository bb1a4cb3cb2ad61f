package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/types"
)

func pct(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestResolvePrice(t *testing.T) {
	got := ResolvePrice(types.MustMoney("100"), pct("10"))
	assert.True(t, got.Equal(types.MustMoney("90.00")), "got %s", got)
	assert.Equal(t, "90.00", types.RoundMoney(got).StringFixed(2))
}

func TestResolvePrice_NoDiscount(t *testing.T) {
	price := types.MustMoney("19.99")

	assert.True(t, ResolvePrice(price, nil).Equal(price))
	assert.True(t, ResolvePrice(price, pct("0")).Equal(price))
	assert.True(t, ResolvePrice(price, pct("100")).IsZero())
}

func TestQuoteLine_Snapshot(t *testing.T) {
	q := QuoteLine(types.MustMoney("100"), pct("10"), 3)

	assert.Equal(t, "270.00", q.Subtotal.StringFixed(2))
	assert.Equal(t, "90.00", q.UnitPrice.StringFixed(2))
	assert.Equal(t, "100.00", q.OriginalPrice.StringFixed(2))
	assert.True(t, q.DiscountPercent.Equal(decimal.NewFromInt(10)))
}

func TestQuoteLine_RoundsOnceAtSubtotal(t *testing.T) {
	// 0.335 * 3 = 1.005 rounds half-up to 1.01; per-unit rounding would give 1.02.
	q := QuoteLine(types.MustMoney("0.67"), pct("50"), 3)

	assert.Equal(t, "1.01", q.Subtotal.StringFixed(2))
	assert.True(t, q.UnitPrice.Equal(types.MustMoney("0.335")))
	assert.True(t, q.Subtotal.Equal(LineSubtotal(q.UnitPrice, 3)))

	q = QuoteLine(types.MustMoney("9.99"), pct("15"), 3)
	assert.Equal(t, "25.47", q.Subtotal.StringFixed(2))
}

func TestValidateDiscount(t *testing.T) {
	assert.NoError(t, ValidateDiscount(decimal.NewFromInt(0)))
	assert.NoError(t, ValidateDiscount(decimal.NewFromInt(100)))
	assert.True(t, apperror.IsValidation(ValidateDiscount(decimal.NewFromInt(101))))
	assert.True(t, apperror.IsValidation(ValidateDiscount(decimal.NewFromInt(-1))))
}
