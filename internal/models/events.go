package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCompleted       = "SALE_COMPLETED"
	EventTypeDebtPaymentRecorded = "DEBT_PAYMENT_RECORDED"
	EventTypeStockAdjusted       = "STOCK_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent published when a checkout commits
type SaleCompletedEvent struct {
	BaseEvent
	PurchaseID    string          `json:"purchase_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Lines         []CartLine      `json:"lines"`
}

// DebtPaymentRecordedEvent published when a customer pays down debt
type DebtPaymentRecordedEvent struct {
	BaseEvent
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// StockAdjustedEvent published when admin stock edits bypass the cart flow
type StockAdjustedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	OldStock  int    `json:"old_stock"`
	NewStock  int    `json:"new_stock"`
}
