package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-service/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyDiscountNone(t *testing.T) {
	final, err := ApplyDiscount(dec("100.00"), nil)
	require.NoError(t, err)
	assert.True(t, final.Equal(dec("100.00")), "got %s", final)
}

func TestApplyDiscountPercentage(t *testing.T) {
	final, err := ApplyDiscount(dec("100.00"), &models.Discount{
		Type:  models.DiscountTypePercentage,
		Value: dec("10"),
	})
	require.NoError(t, err)
	assert.True(t, final.Equal(dec("90.00")), "got %s", final)
}

func TestApplyDiscountFixedClampsAtZero(t *testing.T) {
	final, err := ApplyDiscount(dec("100.00"), &models.Discount{
		Type:  models.DiscountTypeFixed,
		Value: dec("150"),
	})
	require.NoError(t, err)
	assert.True(t, final.IsZero(), "got %s", final)
}

func TestApplyDiscountPercentageOverHundredClampsAtZero(t *testing.T) {
	final, err := ApplyDiscount(dec("100.00"), &models.Discount{
		Type:  models.DiscountTypePercentage,
		Value: dec("150"),
	})
	require.NoError(t, err)
	assert.True(t, final.IsZero(), "got %s", final)
}

func TestApplyDiscountNegativeValue(t *testing.T) {
	_, err := ApplyDiscount(dec("100.00"), &models.Discount{
		Type:  models.DiscountTypeFixed,
		Value: dec("-5"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)
}

func TestApplyDiscountUnknownTypeIsNoDiscount(t *testing.T) {
	final, err := ApplyDiscount(dec("80.00"), &models.Discount{
		Type:  "bogo",
		Value: dec("10"),
	})
	require.NoError(t, err)
	assert.True(t, final.Equal(dec("80.00")), "got %s", final)
}

func TestValidateCash(t *testing.T) {
	received, change, err := ValidateCash(dec("45.80"), "50")
	require.NoError(t, err)
	assert.True(t, received.Equal(dec("50")), "got %s", received)
	assert.True(t, change.Equal(dec("4.20")), "got %s", change)
}

func TestValidateCashExact(t *testing.T) {
	received, change, err := ValidateCash(dec("45.80"), "45.80")
	require.NoError(t, err)
	assert.True(t, received.Equal(dec("45.80")), "got %s", received)
	assert.True(t, change.IsZero(), "got %s", change)
}

func TestValidateCashInsufficient(t *testing.T) {
	_, _, err := ValidateCash(dec("45.80"), "40")
	assert.ErrorIs(t, err, models.ErrInsufficientCash)
}

func TestValidateCashUnparseable(t *testing.T) {
	for _, raw := range []string{"", "abc", "12,50", "-10"} {
		_, _, err := ValidateCash(dec("10.00"), raw)
		assert.ErrorIs(t, err, models.ErrInvalidCashAmount, "input %q", raw)
	}
}
