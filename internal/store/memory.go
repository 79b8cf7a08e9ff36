package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pos-service/internal/models"
)

// MemoryStore keeps everything in process memory behind one mutex. It is the
// default backend and the one the checkout atomicity contract is written
// against: CommitSale validates every mutation before applying any of them.
type MemoryStore struct {
	mu sync.RWMutex

	products   map[string]*models.Product
	categories map[string]*models.Category
	customers  map[string]*models.Customer
	purchases  []*models.Purchase
	byID       map[string]*models.Purchase
	processed  map[string]models.ProcessedEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]*models.Product),
		categories: make(map[string]*models.Category),
		customers:  make(map[string]*models.Customer),
		byID:       make(map[string]*models.Purchase),
		processed:  make(map[string]models.ProcessedEvent),
	}
}

// Close implements Repository; there is nothing to release.
func (m *MemoryStore) Close() error { return nil }

func copyProduct(p *models.Product) *models.Product {
	cp := *p
	if p.ExpirationDate != nil {
		d := *p.ExpirationDate
		cp.ExpirationDate = &d
	}
	return &cp
}

func copyCustomer(c *models.Customer) *models.Customer {
	cp := *c
	cp.PurchaseIDs = append([]string(nil), c.PurchaseIDs...)
	return &cp
}

func copyPurchase(p *models.Purchase) *models.Purchase {
	cp := *p
	cp.Lines = append([]models.CartLine(nil), p.Lines...)
	if p.Discount != nil {
		d := *p.Discount
		cp.Discount = &d
	}
	if p.CashReceived != nil {
		v := *p.CashReceived
		cp.CashReceived = &v
	}
	if p.CashChange != nil {
		v := *p.CashChange
		cp.CashChange = &v
	}
	return &cp
}

// Products

func (m *MemoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *copyProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	return copyProduct(p), nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[p.ID]; exists {
		return fmt.Errorf("product already exists: %s", p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.products[p.ID] = copyProduct(p)
	return nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; !ok {
		return models.ErrProductNotFound
	}
	m.products[p.ID] = copyProduct(p)
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return models.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) SetStock(ctx context.Context, id string, stock int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return 0, models.ErrProductNotFound
	}
	if stock < 0 {
		return 0, fmt.Errorf("stock must not be negative: %d: %w", stock, models.ErrInvalidInput)
	}
	old := p.Stock
	p.Stock = stock
	return old, nil
}

// Categories

func (m *MemoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, models.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.categories[c.ID]; exists {
		return fmt.Errorf("category already exists: %s", c.ID)
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.categories[c.ID]
	if !ok {
		return models.ErrCategoryNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return models.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

// Customers

func (m *MemoryStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, *copyCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, models.ErrCustomerNotFound
	}
	return copyCustomer(c), nil
}

func (m *MemoryStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.customers[c.ID]; exists {
		return fmt.Errorf("customer already exists: %s", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.customers[c.ID] = copyCustomer(c)
	return nil
}

func (m *MemoryStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.customers[c.ID]
	if !ok {
		return models.ErrCustomerNotFound
	}
	// Balance and history are owned by the ledger operations, not the
	// profile update.
	cp := copyCustomer(c)
	cp.AccountBalance = existing.AccountBalance
	cp.PurchaseIDs = existing.PurchaseIDs
	m.customers[c.ID] = cp
	return nil
}

func (m *MemoryStore) DeleteCustomer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[id]; !ok {
		return models.ErrCustomerNotFound
	}
	delete(m.customers, id)
	return nil
}

func (m *MemoryStore) AdjustBalance(ctx context.Context, customerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[customerID]
	if !ok {
		return decimal.Zero, models.ErrCustomerNotFound
	}
	c.AccountBalance = c.AccountBalance.Add(delta)
	return c.AccountBalance, nil
}

func (m *MemoryStore) AppendPurchase(ctx context.Context, customerID, purchaseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[customerID]
	if !ok {
		return models.ErrCustomerNotFound
	}
	c.PurchaseIDs = append(c.PurchaseIDs, purchaseID)
	return nil
}

// Sales journal

// CommitSale applies the whole sale under one lock: every line is validated
// against current stock before any decrement, so a failure leaves the store
// untouched.
func (m *MemoryStore) CommitSale(ctx context.Context, sale Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &sale.Purchase
	if _, exists := m.byID[p.ID]; exists {
		return fmt.Errorf("duplicate purchase id: %s", p.ID)
	}

	need, err := lineQuantities(p.Lines)
	if err != nil {
		return err
	}
	for id, qty := range need {
		product, ok := m.products[id]
		if !ok {
			return fmt.Errorf("line %s: %w", id, models.ErrProductNotFound)
		}
		if product.Stock < qty {
			return fmt.Errorf("product %s: have %d, need %d: %w",
				id, product.Stock, qty, models.ErrInsufficientStock)
		}
	}

	var customer *models.Customer
	if sale.CustomerDebit != nil {
		c, ok := m.customers[p.CustomerID]
		if !ok {
			return models.ErrCustomerNotFound
		}
		customer = c
	}

	for id, qty := range need {
		m.products[id].Stock -= qty
	}
	if customer != nil {
		customer.AccountBalance = customer.AccountBalance.Sub(*sale.CustomerDebit)
		customer.PurchaseIDs = append(customer.PurchaseIDs, p.ID)
	}

	stored := copyPurchase(p)
	m.purchases = append(m.purchases, stored)
	m.byID[stored.ID] = stored
	return nil
}

func (m *MemoryStore) ListPurchases(ctx context.Context) ([]models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Purchase, 0, len(m.purchases))
	for _, p := range m.purchases {
		out = append(out, *copyPurchase(p))
	}
	return out, nil
}

func (m *MemoryStore) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return nil, models.ErrPurchaseNotFound
	}
	return copyPurchase(p), nil
}

func (m *MemoryStore) ListPurchasesByCustomer(ctx context.Context, customerID string) ([]models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.customers[customerID]; !ok {
		return nil, models.ErrCustomerNotFound
	}
	var out []models.Purchase
	for _, p := range m.purchases {
		if p.CustomerID == customerID {
			out = append(out, *copyPurchase(p))
		}
	}
	return out, nil
}

// Consumer idempotency

func (m *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed[eventID] = models.ProcessedEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return nil
}
