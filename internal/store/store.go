// Package store owns the catalog, customer directory, and sales journal.
// The memory store is the reference implementation; the postgres store is the
// durable option for deployments that need state to survive restarts.
package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"pos-service/internal/models"
)

// Sale is the atomic commit unit produced by checkout: the purchase record
// plus the stock decrements implied by its lines, and, for account payments,
// the customer debit and history append. Either all of it applies or none.
type Sale struct {
	Purchase models.Purchase

	// CustomerDebit, when non-nil, is subtracted from the balance of
	// Purchase.CustomerID and the purchase is appended to that customer's
	// history.
	CustomerDebit *decimal.Decimal
}

// lineQuantities sums the stock each product needs across a sale's lines, so
// duplicate lines for one product are checked against its stock as a whole.
// A quantity below one is a caller error, never a stock movement.
func lineQuantities(lines []models.CartLine) (map[string]int, error) {
	need := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("line %s: quantity %d: %w",
				line.ProductID, line.Quantity, models.ErrInvalidQuantity)
		}
		need[line.ProductID] += line.Quantity
	}
	return need, nil
}

// Repository is the storage boundary shared by the memory and postgres stores.
type Repository interface {
	// Products
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// SetStock overwrites a product's stock and returns the previous value.
	SetStock(ctx context.Context, id string, stock int) (int, error)

	// Categories
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error

	// Customers
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	// AdjustBalance adds delta to the customer's balance and returns the new balance.
	AdjustBalance(ctx context.Context, customerID string, delta decimal.Decimal) (decimal.Decimal, error)
	AppendPurchase(ctx context.Context, customerID, purchaseID string) error

	// Sales journal
	CommitSale(ctx context.Context, sale Sale) error
	ListPurchases(ctx context.Context) ([]models.Purchase, error)
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	ListPurchasesByCustomer(ctx context.Context, customerID string) ([]models.Purchase, error)

	// Consumer idempotency
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error

	Close() error
}
