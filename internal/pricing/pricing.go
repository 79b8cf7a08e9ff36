// Package pricing holds the pure price computations used at checkout:
// discount application and cash tender validation.
package pricing

import (
	"github.com/shopspring/decimal"

	"pos-service/internal/models"
)

var oneHundred = decimal.NewFromInt(100)

// ApplyDiscount converts a subtotal and an optional discount into the final
// price. A nil discount leaves the subtotal unchanged, an unrecognized
// discount type is treated as no discount, and a negative discount value is
// rejected. The result never goes below zero.
func ApplyDiscount(subtotal decimal.Decimal, discount *models.Discount) (decimal.Decimal, error) {
	if discount == nil {
		return subtotal, nil
	}
	if discount.Value.IsNegative() {
		return decimal.Zero, models.ErrInvalidDiscount
	}

	var final decimal.Decimal
	switch discount.Type {
	case models.DiscountTypePercentage:
		final = subtotal.Sub(subtotal.Mul(discount.Value).Div(oneHundred))
	case models.DiscountTypeFixed:
		final = subtotal.Sub(discount.Value)
	default:
		// Unknown discount kinds fail safe as "no discount".
		return subtotal, nil
	}

	if final.IsNegative() {
		return decimal.Zero, nil
	}
	return final, nil
}

// ValidateCash checks tendered cash against the final price and returns the
// parsed amount and the change due. The raw string comes straight from the
// register form, so it is parsed and range-checked here before any mutation
// happens downstream.
func ValidateCash(finalPrice decimal.Decimal, cashReceived string) (received, change decimal.Decimal, err error) {
	received, err = decimal.NewFromString(cashReceived)
	if err != nil || received.IsNegative() {
		return decimal.Zero, decimal.Zero, models.ErrInvalidCashAmount
	}
	if received.LessThan(finalPrice) {
		return decimal.Zero, decimal.Zero, models.ErrInsufficientCash
	}
	return received, received.Sub(finalPrice), nil
}
