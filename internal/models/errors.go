package models

import "errors"

// Domain error kinds. All are caller-correctable: the stores and the sales
// journal are never left partially updated when one of these is returned.
var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidDiscount    = errors.New("invalid discount")
	ErrInvalidCashAmount  = errors.New("invalid cash amount")
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrCustomerRequired   = errors.New("customer required for account payment")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductExpired     = errors.New("product is expired")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrCartNotFound       = errors.New("cart not found")
	ErrInvalidDebtPayment = errors.New("invalid debt payment amount")
	ErrInvalidPayment     = errors.New("invalid payment method")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidInput       = errors.New("invalid input")
)
