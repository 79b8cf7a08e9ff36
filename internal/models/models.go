package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description,omitempty"`
	CategoryID     string          `db:"category_id" json:"category_id,omitempty"`
	Price          decimal.Decimal `db:"price" json:"price"`
	Stock          int             `db:"stock" json:"stock"`
	ExpirationDate *time.Time      `db:"expiration_date" json:"expiration_date,omitempty"`
	ImageURL       string          `db:"image_url" json:"image_url,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Expired reports whether the product's expiration date, if any, is before today.
func (p *Product) Expired(now time.Time) bool {
	if p.ExpirationDate == nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return p.ExpirationDate.Before(today)
}

// Expiry statuses
const (
	ExpiryStatusExpired = "expired"
	ExpiryStatusWarning = "warning"
	ExpiryStatusOK      = "ok"
	ExpiryStatusNone    = "none"
)

// ExpiryWarningWindow is how far ahead a product counts as close to expiry.
const ExpiryWarningWindow = 7 * 24 * time.Hour

// ExpiryStatus classifies the product's expiration date relative to now.
func (p *Product) ExpiryStatus(now time.Time) string {
	if p.ExpirationDate == nil {
		return ExpiryStatusNone
	}
	if p.Expired(now) {
		return ExpiryStatusExpired
	}
	if p.ExpirationDate.Before(now.Add(ExpiryWarningWindow)) {
		return ExpiryStatusWarning
	}
	return ExpiryStatusOK
}

// Category groups products in the catalog
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Icon      string    `db:"icon" json:"icon,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Customer represents a store customer with an account balance.
// A negative balance is outstanding debt.
type Customer struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Phone          string          `db:"phone" json:"phone,omitempty"`
	Email          string          `db:"email" json:"email,omitempty"`
	Address        string          `db:"address" json:"address,omitempty"`
	AccountBalance decimal.Decimal `db:"account_balance" json:"account_balance"`
	PurchaseIDs    []string        `db:"-" json:"purchase_ids"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// CartLine is one product/quantity pairing in a cart or a committed purchase.
// Name and unit price are snapshotted when the line is created.
type CartLine struct {
	ProductID   string          `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity    int             `db:"quantity" json:"quantity"`
}

// LineTotal returns unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Discount reduces a subtotal, either by a percentage or a fixed amount.
type Discount struct {
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description,omitempty"`
}

// Payment methods
const (
	PaymentMethodCash       = "cash"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodDebitCard  = "debit_card"
	PaymentMethodPix        = "pix"
	PaymentMethodAccount    = "account"
)

// Payment statuses
const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

// ValidPaymentMethod reports whether m is one of the supported methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodDebitCard,
		PaymentMethodPix, PaymentMethodAccount:
		return true
	}
	return false
}

// Purchase is a committed sale. It is created exactly once at checkout and
// never mutated afterward; the lines are a snapshot of the cart at sale time.
type Purchase struct {
	ID            string           `db:"id" json:"id"`
	Date          time.Time        `db:"date" json:"date"`
	Lines         []CartLine       `db:"-" json:"lines"`
	Total         decimal.Decimal  `db:"total" json:"total"`
	PaymentMethod string           `db:"payment_method" json:"payment_method"`
	PaymentStatus string           `db:"payment_status" json:"payment_status"`
	CustomerID    string           `db:"customer_id" json:"customer_id,omitempty"`
	CashReceived  *decimal.Decimal `db:"cash_received" json:"cash_received,omitempty"`
	CashChange    *decimal.Decimal `db:"cash_change" json:"cash_change,omitempty"`
	Discount      *Discount        `db:"-" json:"discount,omitempty"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
