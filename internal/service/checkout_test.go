package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-service/internal/cart"
	"pos-service/internal/models"
	"pos-service/internal/pricing"
	"pos-service/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// stubPublisher records published events.
type stubPublisher struct {
	sales []*models.SaleCompletedEvent
	debts []*models.DebtPaymentRecordedEvent
	stock []*models.StockAdjustedEvent
}

func (s *stubPublisher) PublishSaleCompleted(ctx context.Context, e *models.SaleCompletedEvent) error {
	s.sales = append(s.sales, e)
	return nil
}

func (s *stubPublisher) PublishDebtPaymentRecorded(ctx context.Context, e *models.DebtPaymentRecordedEvent) error {
	s.debts = append(s.debts, e)
	return nil
}

func (s *stubPublisher) PublishStockAdjusted(ctx context.Context, e *models.StockAdjustedEvent) error {
	s.stock = append(s.stock, e)
	return nil
}

type fixture struct {
	repo   *store.MemoryStore
	carts  *cart.Ledger
	engine *Checkout
	events *stubPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, repo.CreateProduct(ctx, &models.Product{
		ID: "p1", Name: "Rice 5kg", Price: dec("22.90"), Stock: 20,
	}))
	require.NoError(t, repo.CreateProduct(ctx, &models.Product{
		ID: "p2", Name: "Beans 1kg", Price: dec("8.50"), Stock: 3,
	}))
	require.NoError(t, repo.CreateCustomer(ctx, &models.Customer{
		ID: "c1", Name: "Maria", AccountBalance: dec("-150.00"),
	}))

	carts := cart.NewLedger(cart.NewMemoryStore(), repo)
	events := &stubPublisher{}
	return &fixture{
		repo:   repo,
		carts:  carts,
		engine: NewCheckout(repo, carts, events, nil),
		events: events,
	}
}

func TestCheckoutCashEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)

	result, err := f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodCash,
		CashReceived:  "50",
	})
	require.NoError(t, err)

	p := result.Purchase
	assert.True(t, p.Total.Equal(dec("45.80")), "total %s", p.Total)
	assert.Equal(t, models.PaymentStatusPaid, p.PaymentStatus)
	require.NotNil(t, p.CashReceived)
	assert.True(t, p.CashReceived.Equal(dec("50")))
	require.NotNil(t, p.CashChange)
	assert.True(t, p.CashChange.Equal(dec("4.20")), "change %s", p.CashChange)
	assert.Equal(t, "Purchase of 45.80 recorded", result.Description)

	product, err := f.repo.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 18, product.Stock)

	lines, err := f.carts.Lines(ctx, "cart1")
	require.NoError(t, err)
	assert.Empty(t, lines, "cart must be cleared after commit")

	require.Len(t, f.events.sales, 1)
	assert.Equal(t, p.ID, f.events.sales[0].PurchaseID)
}

func TestCheckoutExactCashOmitsChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)

	result, err := f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodCash,
		CashReceived:  "45.80",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Purchase.CashChange)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Checkout(context.Background(), &CheckoutRequest{
		CartID:        "nope",
		PaymentMethod: models.PaymentMethodCash,
		CashReceived:  "10",
	})
	assert.ErrorIs(t, err, models.ErrEmptyCart)

	journal, _ := f.repo.ListPurchases(context.Background())
	assert.Empty(t, journal)
}

func TestCheckoutInvalidPaymentMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 1)
	require.NoError(t, err)

	_, err = f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: "barter",
	})
	assert.ErrorIs(t, err, models.ErrInvalidPayment)
}

func TestCheckoutAccountRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 1)
	require.NoError(t, err)

	_, err = f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodAccount,
	})
	assert.ErrorIs(t, err, models.ErrCustomerRequired)
}

func TestCheckoutAccountUnknownCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 1)
	require.NoError(t, err)

	_, err = f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodAccount,
		CustomerID:    "ghost",
	})
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)

	product, _ := f.repo.GetProduct(ctx, "p1")
	assert.Equal(t, 20, product.Stock)
}

func TestCheckoutOnAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)

	result, err := f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodAccount,
		CustomerID:    "c1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, result.Purchase.PaymentStatus)
	assert.Equal(t, "c1", result.Purchase.CustomerID)

	customer, err := f.repo.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, customer.AccountBalance.Equal(dec("-195.80")), "balance %s", customer.AccountBalance)
	assert.Equal(t, []string{result.Purchase.ID}, customer.PurchaseIDs,
		"purchase appended to history exactly once")
}

func TestCheckoutInsufficientCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)

	_, err = f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodCash,
		CashReceived:  "40",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientCash)

	product, _ := f.repo.GetProduct(ctx, "p1")
	assert.Equal(t, 20, product.Stock)
}

func TestCheckoutStaleCartFailsAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)

	// Admin stock edit after the line was added: the cart is now stale.
	_, err = f.repo.SetStock(ctx, "p1", 1)
	require.NoError(t, err)

	_, err = f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodCash,
		CashReceived:  "50",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	product, _ := f.repo.GetProduct(ctx, "p1")
	assert.Equal(t, 1, product.Stock)

	journal, _ := f.repo.ListPurchases(ctx)
	assert.Empty(t, journal)
	assert.Empty(t, f.events.sales)
}

func TestCheckoutWithPercentageDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 2) // subtotal 45.80
	require.NoError(t, err)

	discount := &models.Discount{Type: models.DiscountTypePercentage, Value: dec("10")}
	result, err := f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodPix,
		Discount:      discount,
	})
	require.NoError(t, err)
	assert.True(t, result.Purchase.Total.Equal(dec("41.22")), "total %s", result.Purchase.Total)
	require.NotNil(t, result.Purchase.Discount)
}

func TestCheckoutNegativeDiscountRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 1)
	require.NoError(t, err)

	_, err = f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodPix,
		Discount:      &models.Discount{Type: models.DiscountTypeFixed, Value: dec("-1")},
	})
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)
}

func TestCheckoutDirectLines(t *testing.T) {
	f := newFixture(t)

	result, err := f.engine.Checkout(context.Background(), &CheckoutRequest{
		Lines: []models.CartLine{
			{ProductID: "p2", ProductName: "Beans 1kg", UnitPrice: dec("8.50"), Quantity: 3},
		},
		PaymentMethod: models.PaymentMethodDebitCard,
	})
	require.NoError(t, err)
	assert.True(t, result.Purchase.Total.Equal(dec("25.50")))

	product, _ := f.repo.GetProduct(context.Background(), "p2")
	assert.Equal(t, 0, product.Stock)
}

func TestCheckoutDirectLinesDuplicateProductOverStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Checkout(ctx, &CheckoutRequest{
		Lines: []models.CartLine{
			{ProductID: "p1", ProductName: "Rice 5kg", UnitPrice: dec("22.90"), Quantity: 15},
			{ProductID: "p1", ProductName: "Rice 5kg", UnitPrice: dec("22.90"), Quantity: 15},
		},
		PaymentMethod: models.PaymentMethodCash,
		CashReceived:  "700",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	product, _ := f.repo.GetProduct(ctx, "p1")
	assert.Equal(t, 20, product.Stock, "duplicate lines must be checked against stock together")
	assert.Empty(t, f.events.sales)
}

func TestCheckoutDirectLinesNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Checkout(ctx, &CheckoutRequest{
		Lines: []models.CartLine{
			{ProductID: "p1", ProductName: "Rice 5kg", UnitPrice: dec("22.90"), Quantity: -2},
		},
		PaymentMethod: models.PaymentMethodCash,
		CashReceived:  "0",
	})
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	product, _ := f.repo.GetProduct(ctx, "p1")
	assert.Equal(t, 20, product.Stock)
}

func TestPurchaseTotalRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)
	_, err = f.carts.AddLine(ctx, "cart1", "p2", 1)
	require.NoError(t, err)

	discount := &models.Discount{Type: models.DiscountTypeFixed, Value: dec("5.00")}
	result, err := f.engine.Checkout(ctx, &CheckoutRequest{
		CartID:        "cart1",
		PaymentMethod: models.PaymentMethodCreditCard,
		Discount:      discount,
	})
	require.NoError(t, err)

	// Recomputing the total from the snapshotted lines and the stored
	// discount must reproduce the committed total.
	stored, err := f.repo.GetPurchase(ctx, result.Purchase.ID)
	require.NoError(t, err)

	subtotal := cart.Subtotal(stored.Lines)
	recomputed, err := pricing.ApplyDiscount(subtotal, stored.Discount)
	require.NoError(t, err)
	assert.True(t, recomputed.Equal(stored.Total), "recomputed %s, stored %s", recomputed, stored.Total)
}

func TestPurchaseIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		result, err := f.engine.Checkout(ctx, &CheckoutRequest{
			Lines:         []models.CartLine{{ProductID: "p1", UnitPrice: dec("22.90"), Quantity: 1}},
			PaymentMethod: models.PaymentMethodPix,
		})
		require.NoError(t, err)
		assert.False(t, seen[result.Purchase.ID], "duplicate id %s", result.Purchase.ID)
		seen[result.Purchase.ID] = true
	}
}
