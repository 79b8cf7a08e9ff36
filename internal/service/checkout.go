package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-service/internal/cart"
	"pos-service/internal/models"
	"pos-service/internal/pricing"
	"pos-service/internal/store"
	"pos-service/internal/util"
)

// EventPublisher is the outbound event hook. The broker's publisher satisfies
// it; tests pass a stub or nil.
type EventPublisher interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	PublishDebtPaymentRecorded(ctx context.Context, event *models.DebtPaymentRecordedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
}

// Locker serializes checkouts across instances. The redis client satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

const checkoutLockTTL = 10 * time.Second

// Checkout turns cart line items into committed purchases. All stock, balance,
// and journal mutations go through the repository's atomic CommitSale; the
// engine itself only validates and serializes.
type Checkout struct {
	repo   store.Repository
	carts  *cart.Ledger
	events EventPublisher
	locker Locker
	logger *zap.Logger

	// mu is the in-process single writer; the optional locker extends the
	// same guarantee across instances.
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewCheckout creates the checkout engine. events and locker may be nil.
func NewCheckout(repo store.Repository, carts *cart.Ledger, events EventPublisher, locker Locker) *Checkout {
	return &Checkout{
		repo:   repo,
		carts:  carts,
		events: events,
		locker: locker,
		logger: util.GetLogger(),
		now:    time.Now,
		newID:  newPurchaseID,
	}
}

// newPurchaseID builds a journal-unique id: a time component plus a random
// suffix.
func newPurchaseID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// CheckoutRequest describes one checkout. Lines are taken from the cart named
// by CartID, or directly from Lines when CartID is empty.
type CheckoutRequest struct {
	CartID        string            `json:"cart_id,omitempty"`
	Lines         []models.CartLine `json:"lines,omitempty"`
	PaymentMethod string            `json:"payment_method" binding:"required"`
	CustomerID    string            `json:"customer_id,omitempty"`
	CashReceived  string            `json:"cash_received,omitempty"`
	Discount      *models.Discount  `json:"discount,omitempty"`
}

// CheckoutResult carries the committed purchase and the description string the
// presentation layer renders.
type CheckoutResult struct {
	Purchase    *models.Purchase `json:"purchase"`
	Description string           `json:"description"`
}

// Checkout validates the payment path, computes the final price, and commits
// the purchase atomically. On any error no stock, balance, or journal state
// has changed.
func (c *Checkout) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	lines := req.Lines
	if req.CartID != "" {
		var err error
		lines, err = c.carts.Lines(ctx, req.CartID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cart %s: %w", req.CartID, err)
		}
	}
	if len(lines) == 0 {
		util.CheckoutFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.ErrEmptyCart
	}

	if !models.ValidPaymentMethod(req.PaymentMethod) {
		util.CheckoutFailedTotal.WithLabelValues("invalid_payment").Inc()
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidPayment, req.PaymentMethod)
	}

	subtotal := cart.Subtotal(lines)
	finalPrice, err := pricing.ApplyDiscount(subtotal, req.Discount)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("invalid_discount").Inc()
		return nil, err
	}

	purchase := models.Purchase{
		ID:            c.newID(),
		Date:          c.now(),
		Lines:         append([]models.CartLine(nil), lines...),
		Total:         finalPrice,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusPaid,
		Discount:      req.Discount,
	}

	var customerDebit *decimal.Decimal

	switch req.PaymentMethod {
	case models.PaymentMethodAccount:
		if req.CustomerID == "" {
			util.CheckoutFailedTotal.WithLabelValues("customer_required").Inc()
			return nil, models.ErrCustomerRequired
		}
		if _, err := c.repo.GetCustomer(ctx, req.CustomerID); err != nil {
			util.CheckoutFailedTotal.WithLabelValues("customer_not_found").Inc()
			return nil, err
		}
		purchase.CustomerID = req.CustomerID
		purchase.PaymentStatus = models.PaymentStatusPending
		debit := finalPrice
		customerDebit = &debit

	case models.PaymentMethodCash:
		received, change, err := pricing.ValidateCash(finalPrice, req.CashReceived)
		if err != nil {
			util.CheckoutFailedTotal.WithLabelValues("invalid_cash").Inc()
			return nil, err
		}
		purchase.CashReceived = &received
		if change.IsPositive() {
			purchase.CashChange = &change
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locker != nil && req.CartID != "" {
		ok, err := c.locker.AcquireLock(ctx, "checkout:"+req.CartID, checkoutLockTTL)
		if err != nil {
			c.logger.Warn("Checkout lock unavailable, relying on local serialization",
				zap.String("cart_id", req.CartID),
				zap.Error(err))
		} else if !ok {
			return nil, fmt.Errorf("checkout already in progress for cart %s", req.CartID)
		} else {
			defer func() {
				if err := c.locker.ReleaseLock(ctx, "checkout:"+req.CartID); err != nil {
					c.logger.Error("Failed to release checkout lock", zap.Error(err))
				}
			}()
		}
	}

	// Stock is only read while lines sit in the cart, so it may have moved
	// since. CommitSale re-checks every line and fails without partial effect.
	if err := c.repo.CommitSale(ctx, store.Sale{Purchase: purchase, CustomerDebit: customerDebit}); err != nil {
		util.CheckoutFailedTotal.WithLabelValues("commit_failed").Inc()
		return nil, err
	}

	if req.CartID != "" {
		if err := c.carts.Clear(ctx, req.CartID); err != nil {
			c.logger.Error("Failed to clear cart after sale",
				zap.String("cart_id", req.CartID),
				zap.Error(err))
		}
	}

	util.SalesCompletedTotal.WithLabelValues(purchase.PaymentMethod).Inc()
	c.logger.Info("Sale committed",
		zap.String("purchase_id", purchase.ID),
		zap.String("payment_method", purchase.PaymentMethod),
		zap.String("total", purchase.Total.StringFixed(2)))

	if c.events != nil {
		event := &models.SaleCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSaleCompleted,
				Timestamp: c.now(),
			},
			PurchaseID:    purchase.ID,
			Total:         purchase.Total,
			PaymentMethod: purchase.PaymentMethod,
			PaymentStatus: purchase.PaymentStatus,
			CustomerID:    purchase.CustomerID,
			Lines:         purchase.Lines,
		}
		if err := c.events.PublishSaleCompleted(ctx, event); err != nil {
			c.logger.Error("Failed to publish SaleCompleted event", zap.Error(err))
		}
	}

	return &CheckoutResult{
		Purchase:    &purchase,
		Description: fmt.Sprintf("Purchase of %s recorded", purchase.Total.StringFixed(2)),
	}, nil
}
