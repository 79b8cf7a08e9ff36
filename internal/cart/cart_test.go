package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-service/internal/models"
	"pos-service/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newLedger(t *testing.T) (*Ledger, *store.MemoryStore) {
	t.Helper()
	repo := store.NewMemory()
	ctx := context.Background()

	yesterday := time.Now().Add(-48 * time.Hour)
	require.NoError(t, repo.CreateProduct(ctx, &models.Product{
		ID: "p1", Name: "Rice 5kg", Price: dec("22.90"), Stock: 20,
	}))
	require.NoError(t, repo.CreateProduct(ctx, &models.Product{
		ID: "p2", Name: "Beans 1kg", Price: dec("8.50"), Stock: 3,
	}))
	require.NoError(t, repo.CreateProduct(ctx, &models.Product{
		ID: "p3", Name: "Old Yogurt", Price: dec("4.00"), Stock: 10,
		ExpirationDate: &yesterday,
	}))
	return NewLedger(NewMemoryStore(), repo), repo
}

func TestAddLineMergesSameProduct(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	line, err := l.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "Rice 5kg", line.ProductName)

	line, err = l.AddLine(ctx, "cart1", "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)

	lines, err := l.Lines(ctx, "cart1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestAddLineRejectsNonPositiveQuantity(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	for _, qty := range []int{0, -1} {
		_, err := l.AddLine(ctx, "cart1", "p1", qty)
		assert.ErrorIs(t, err, models.ErrInvalidQuantity, "quantity %d", qty)
	}

	lines, err := l.Lines(ctx, "cart1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestAddLineRejectsOverStock(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddLine(ctx, "cart1", "p2", 4)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	lines, _ := l.Lines(ctx, "cart1")
	assert.Empty(t, lines, "failed add must leave the cart unchanged")
}

func TestAddLineRejectsMergedOverStock(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddLine(ctx, "cart1", "p2", 2)
	require.NoError(t, err)

	_, err = l.AddLine(ctx, "cart1", "p2", 2)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	lines, _ := l.Lines(ctx, "cart1")
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAddLineRejectsExpiredProduct(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.AddLine(context.Background(), "cart1", "p3", 1)
	assert.ErrorIs(t, err, models.ErrProductExpired)
}

func TestAddLineUnknownProduct(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.AddLine(context.Background(), "cart1", "ghost", 1)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestSetLineQuantity(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)

	require.NoError(t, l.SetLineQuantity(ctx, "cart1", "p1", 7))
	lines, _ := l.Lines(ctx, "cart1")
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)

	err = l.SetLineQuantity(ctx, "cart1", "p1", 21)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	require.NoError(t, l.SetLineQuantity(ctx, "cart1", "p1", 0))
	lines, _ = l.Lines(ctx, "cart1")
	assert.Empty(t, lines)
}

func TestRemoveLineAbsentIsNoop(t *testing.T) {
	l, _ := newLedger(t)
	assert.NoError(t, l.RemoveLine(context.Background(), "cart1", "ghost"))
}

func TestSubtotalAndItemCount(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddLine(ctx, "cart1", "p1", 2)
	require.NoError(t, err)
	_, err = l.AddLine(ctx, "cart1", "p2", 3)
	require.NoError(t, err)

	subtotal, err := l.Subtotal(ctx, "cart1")
	require.NoError(t, err)
	assert.True(t, subtotal.Equal(dec("71.30")), "got %s", subtotal) // 2*22.90 + 3*8.50

	count, err := l.TotalItemCount(ctx, "cart1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestClear(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.AddLine(ctx, "cart1", "p1", 1)
	require.NoError(t, err)
	require.NoError(t, l.Clear(ctx, "cart1"))

	lines, _ := l.Lines(ctx, "cart1")
	assert.Empty(t, lines)
}

func TestLineSnapshotsPriceAtAddTime(t *testing.T) {
	l, repo := newLedger(t)
	ctx := context.Background()

	_, err := l.AddLine(ctx, "cart1", "p1", 1)
	require.NoError(t, err)

	p, _ := repo.GetProduct(ctx, "p1")
	p.Price = dec("99.99")
	require.NoError(t, repo.UpdateProduct(ctx, p))

	lines, _ := l.Lines(ctx, "cart1")
	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitPrice.Equal(dec("22.90")), "got %s", lines[0].UnitPrice)
}
