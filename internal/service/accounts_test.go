package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-service/internal/models"
	"pos-service/internal/store"
)

func newAccounts(t *testing.T) (*Accounts, *stubPublisher) {
	t.Helper()
	repo := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, repo.CreateCustomer(ctx, &models.Customer{
		ID: "c1", Name: "Maria", AccountBalance: dec("-150.00"),
	}))
	require.NoError(t, repo.CreateCustomer(ctx, &models.Customer{
		ID: "c2", Name: "João", AccountBalance: dec("0"),
	}))

	events := &stubPublisher{}
	return NewAccounts(repo, events), events
}

func TestRecordDebtPayment(t *testing.T) {
	a, events := newAccounts(t)
	ctx := context.Background()

	result, err := a.RecordDebtPayment(ctx, "c1", dec("50.00"))
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(dec("-100.00")), "balance %s", result.NewBalance)
	assert.Equal(t, "Debt payment of 50.00 recorded", result.Description)

	balance, err := a.GetBalance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-100.00")))

	require.Len(t, events.debts, 1)
	assert.Equal(t, "c1", events.debts[0].CustomerID)
}

func TestRecordDebtPaymentExceedsDebt(t *testing.T) {
	a, _ := newAccounts(t)

	_, err := a.RecordDebtPayment(context.Background(), "c1", dec("200.00"))
	assert.ErrorIs(t, err, models.ErrInvalidDebtPayment)

	balance, _ := a.GetBalance(context.Background(), "c1")
	assert.True(t, balance.Equal(dec("-150.00")), "failed payment must not change the balance")
}

func TestRecordDebtPaymentConcurrentOverlap(t *testing.T) {
	a, _ := newAccounts(t)
	ctx := context.Background()

	// Two payments of 100 against a debt of 150: only one fits the bound,
	// whichever order they land in.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.RecordDebtPayment(ctx, "c1", dec("100.00"))
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, models.ErrInvalidDebtPayment)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "exactly one of two overlapping payments may succeed")

	balance, err := a.GetBalance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-50.00")), "balance %s must stay non-positive", balance)
}

func TestRecordDebtPaymentNonPositiveAmount(t *testing.T) {
	a, _ := newAccounts(t)

	_, err := a.RecordDebtPayment(context.Background(), "c1", dec("0"))
	assert.ErrorIs(t, err, models.ErrInvalidDebtPayment)

	_, err = a.RecordDebtPayment(context.Background(), "c1", dec("-10"))
	assert.ErrorIs(t, err, models.ErrInvalidDebtPayment)
}

func TestRecordDebtPaymentNoDebt(t *testing.T) {
	a, _ := newAccounts(t)

	_, err := a.RecordDebtPayment(context.Background(), "c2", dec("10.00"))
	assert.ErrorIs(t, err, models.ErrInvalidDebtPayment)
}

func TestRecordDebtPaymentUnknownCustomer(t *testing.T) {
	a, _ := newAccounts(t)

	_, err := a.RecordDebtPayment(context.Background(), "ghost", dec("10.00"))
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
}

func TestAdjustBalance(t *testing.T) {
	a, _ := newAccounts(t)
	ctx := context.Background()

	balance, err := a.AdjustBalance(ctx, "c2", dec("-30.00"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-30.00")))

	_, err = a.AdjustBalance(ctx, "ghost", dec("1"))
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
}

func TestGetBalanceUnknownCustomer(t *testing.T) {
	a, _ := newAccounts(t)

	_, err := a.GetBalance(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
}
