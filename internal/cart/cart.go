// Package cart holds the transient line items for in-progress sales. A cart
// only reads product stock when a line is added or resized; checkout re-checks
// stock before committing, so stale lines fail there instead of here.
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pos-service/internal/models"
	"pos-service/internal/store"
)

// Store persists cart lines per cart id. Get returns nil for an unknown cart.
type Store interface {
	Get(ctx context.Context, cartID string) ([]models.CartLine, error)
	Save(ctx context.Context, cartID string, lines []models.CartLine) error
	Delete(ctx context.Context, cartID string) error
}

// MemoryStore is the in-process cart store used when redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]models.CartLine
}

// NewMemoryStore creates an empty in-memory cart store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]models.CartLine)}
}

func (m *MemoryStore) Get(ctx context.Context, cartID string) ([]models.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.CartLine(nil), m.carts[cartID]...), nil
}

func (m *MemoryStore) Save(ctx context.Context, cartID string, lines []models.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cartID] = append([]models.CartLine(nil), lines...)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, cartID)
	return nil
}

// Ledger enforces the per-line stock ceiling over a cart store.
type Ledger struct {
	carts Store
	repo  store.Repository
	now   func() time.Time
}

// NewLedger creates a cart ledger backed by the given stores.
func NewLedger(carts Store, repo store.Repository) *Ledger {
	return &Ledger{carts: carts, repo: repo, now: time.Now}
}

// AddLine merges quantity into an existing line for the product or appends a
// new one. The merged quantity must not exceed the product's current stock,
// and expired or out-of-stock products are rejected outright.
func (l *Ledger) AddLine(ctx context.Context, cartID, productID string, quantity int) (models.CartLine, error) {
	if quantity < 1 {
		return models.CartLine{}, fmt.Errorf("quantity must be at least 1, got %d: %w",
			quantity, models.ErrInvalidQuantity)
	}

	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return models.CartLine{}, err
	}
	if product.Expired(l.now()) {
		return models.CartLine{}, fmt.Errorf("product %s: %w", productID, models.ErrProductExpired)
	}

	lines, err := l.carts.Get(ctx, cartID)
	if err != nil {
		return models.CartLine{}, err
	}

	for i, line := range lines {
		if line.ProductID != productID {
			continue
		}
		merged := line.Quantity + quantity
		if merged > product.Stock {
			return models.CartLine{}, fmt.Errorf("product %s: %d in cart, %d in stock: %w",
				productID, line.Quantity, product.Stock, models.ErrInsufficientStock)
		}
		lines[i].Quantity = merged
		if err := l.carts.Save(ctx, cartID, lines); err != nil {
			return models.CartLine{}, err
		}
		return lines[i], nil
	}

	if quantity > product.Stock {
		return models.CartLine{}, fmt.Errorf("product %s: only %d in stock: %w",
			productID, product.Stock, models.ErrInsufficientStock)
	}

	line := models.CartLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
	}
	lines = append(lines, line)
	if err := l.carts.Save(ctx, cartID, lines); err != nil {
		return models.CartLine{}, err
	}
	return line, nil
}

// SetLineQuantity overwrites a line's quantity. Zero or negative removes the
// line; a missing line is a no-op.
func (l *Ledger) SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	if quantity <= 0 {
		return l.RemoveLine(ctx, cartID, productID)
	}

	lines, err := l.carts.Get(ctx, cartID)
	if err != nil {
		return err
	}

	for i, line := range lines {
		if line.ProductID != productID {
			continue
		}
		product, err := l.repo.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return fmt.Errorf("product %s: only %d in stock: %w",
				productID, product.Stock, models.ErrInsufficientStock)
		}
		lines[i].Quantity = quantity
		return l.carts.Save(ctx, cartID, lines)
	}
	return nil
}

// RemoveLine drops the product's line unconditionally; absent is a no-op.
func (l *Ledger) RemoveLine(ctx context.Context, cartID, productID string) error {
	lines, err := l.carts.Get(ctx, cartID)
	if err != nil {
		return err
	}
	kept := lines[:0]
	for _, line := range lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	return l.carts.Save(ctx, cartID, kept)
}

// Clear empties the cart.
func (l *Ledger) Clear(ctx context.Context, cartID string) error {
	return l.carts.Delete(ctx, cartID)
}

// Lines returns the cart's current lines.
func (l *Ledger) Lines(ctx context.Context, cartID string) ([]models.CartLine, error) {
	return l.carts.Get(ctx, cartID)
}

// Subtotal sums unit price times quantity over the cart.
func (l *Ledger) Subtotal(ctx context.Context, cartID string) (decimal.Decimal, error) {
	lines, err := l.carts.Get(ctx, cartID)
	if err != nil {
		return decimal.Zero, err
	}
	return Subtotal(lines), nil
}

// TotalItemCount sums the quantities over the cart.
func (l *Ledger) TotalItemCount(ctx context.Context, cartID string) (int, error) {
	lines, err := l.carts.Get(ctx, cartID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count, nil
}

// Subtotal sums unit price times quantity over a set of lines.
func Subtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}
