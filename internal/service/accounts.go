package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"
)

// Accounts owns customer balances and purchase history. Negative balance is
// outstanding debt.
type Accounts struct {
	repo   store.Repository
	events EventPublisher
	logger *zap.Logger

	// mu serializes debt payments so the bounds check and the balance
	// adjustment see the same balance.
	mu sync.Mutex
}

// NewAccounts creates the account balance manager. events may be nil.
func NewAccounts(repo store.Repository, events EventPublisher) *Accounts {
	return &Accounts{
		repo:   repo,
		events: events,
		logger: util.GetLogger(),
	}
}

// AdjustBalance adds delta to the customer's balance and returns the new one.
func (a *Accounts) AdjustBalance(ctx context.Context, customerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	return a.repo.AdjustBalance(ctx, customerID, delta)
}

// AppendPurchase appends a purchase id to the customer's history.
func (a *Accounts) AppendPurchase(ctx context.Context, customerID, purchaseID string) error {
	return a.repo.AppendPurchase(ctx, customerID, purchaseID)
}

// GetBalance returns the customer's current balance.
func (a *Accounts) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	customer, err := a.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return customer.AccountBalance, nil
}

// PurchaseHistory returns the customer's purchases in chronological order.
func (a *Accounts) PurchaseHistory(ctx context.Context, customerID string) ([]models.Purchase, error) {
	return a.repo.ListPurchasesByCustomer(ctx, customerID)
}

// DebtPaymentResult is returned after a successful debt payment.
type DebtPaymentResult struct {
	CustomerID  string          `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	Description string          `json:"description"`
}

// RecordDebtPayment reduces a customer's outstanding debt. The amount must be
// positive and must not exceed the absolute debt.
func (a *Accounts) RecordDebtPayment(ctx context.Context, customerID string, amount decimal.Decimal) (*DebtPaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "Accounts.RecordDebtPayment")
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	customer, err := a.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if !amount.IsPositive() {
		util.DebtPaymentsRejectedTotal.Inc()
		return nil, fmt.Errorf("amount must be positive: %w", models.ErrInvalidDebtPayment)
	}
	if !customer.AccountBalance.IsNegative() {
		util.DebtPaymentsRejectedTotal.Inc()
		return nil, fmt.Errorf("customer %s has no outstanding debt: %w", customerID, models.ErrInvalidDebtPayment)
	}
	if amount.GreaterThan(customer.AccountBalance.Abs()) {
		util.DebtPaymentsRejectedTotal.Inc()
		return nil, fmt.Errorf("amount %s exceeds debt %s: %w",
			amount.StringFixed(2), customer.AccountBalance.Abs().StringFixed(2), models.ErrInvalidDebtPayment)
	}

	newBalance, err := a.repo.AdjustBalance(ctx, customerID, amount)
	if err != nil {
		return nil, err
	}

	util.DebtPaymentsTotal.Inc()
	a.logger.Info("Debt payment recorded",
		zap.String("customer_id", customerID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("new_balance", newBalance.StringFixed(2)))

	if a.events != nil {
		event := &models.DebtPaymentRecordedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeDebtPaymentRecorded,
				Timestamp: time.Now(),
			},
			CustomerID: customerID,
			Amount:     amount,
			NewBalance: newBalance,
		}
		if err := a.events.PublishDebtPaymentRecorded(ctx, event); err != nil {
			a.logger.Error("Failed to publish DebtPaymentRecorded event", zap.Error(err))
		}
	}

	return &DebtPaymentResult{
		CustomerID:  customerID,
		Amount:      amount,
		NewBalance:  newBalance,
		Description: fmt.Sprintf("Debt payment of %s recorded", amount.StringFixed(2)),
	}, nil
}
