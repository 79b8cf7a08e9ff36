package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"
)

// Catalog manages products, categories, and customer profiles. Stock edits
// here are the "admin" path that can invalidate cart lines; checkout's
// re-check covers that.
type Catalog struct {
	repo   store.Repository
	events EventPublisher
	logger *zap.Logger
}

// NewCatalog creates the catalog service. events may be nil.
func NewCatalog(repo store.Repository, events EventPublisher) *Catalog {
	return &Catalog{
		repo:   repo,
		events: events,
		logger: util.GetLogger(),
	}
}

// ProductView is a product plus its expiry classification.
type ProductView struct {
	models.Product
	ExpiryStatus string `json:"expiry_status"`
}

// ListProducts returns the catalog with expiry status annotated.
func (c *Catalog) ListProducts(ctx context.Context) ([]ProductView, error) {
	products, err := c.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, ProductView{Product: p, ExpiryStatus: p.ExpiryStatus(now)})
	}
	return out, nil
}

// GetProduct returns one product with expiry status.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*ProductView, error) {
	p, err := c.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProductView{Product: *p, ExpiryStatus: p.ExpiryStatus(time.Now())}, nil
}

func validateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("product name is required: %w", models.ErrInvalidInput)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price must not be negative: %w", models.ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock must not be negative: %w", models.ErrInvalidInput)
	}
	return nil
}

// CreateProduct validates and stores a new product, assigning an id if absent.
func (c *Catalog) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if err := c.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	c.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return nil
}

// UpdateProduct validates and overwrites an existing product.
func (c *Catalog) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return c.repo.UpdateProduct(ctx, p)
}

// DeleteProduct removes a product from the catalog.
func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	return c.repo.DeleteProduct(ctx, id)
}

// SetStock overwrites a product's stock and publishes a StockAdjusted event.
func (c *Catalog) SetStock(ctx context.Context, id string, stock int) error {
	old, err := c.repo.SetStock(ctx, id, stock)
	if err != nil {
		return err
	}

	util.StockAdjustmentsTotal.Inc()
	c.logger.Info("Stock adjusted",
		zap.String("product_id", id),
		zap.Int("old_stock", old),
		zap.Int("new_stock", stock))

	if c.events != nil {
		event := &models.StockAdjustedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockAdjusted,
				Timestamp: time.Now(),
			},
			ProductID: id,
			OldStock:  old,
			NewStock:  stock,
		}
		if err := c.events.PublishStockAdjusted(ctx, event); err != nil {
			c.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
		}
	}
	return nil
}

// Categories

func (c *Catalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	return c.repo.ListCategories(ctx)
}

func (c *Catalog) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return c.repo.GetCategory(ctx, id)
}

func (c *Catalog) CreateCategory(ctx context.Context, cat *models.Category) error {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return fmt.Errorf("category name is required: %w", models.ErrInvalidInput)
	}
	if cat.ID == "" {
		cat.ID = uuid.New().String()
	}
	return c.repo.CreateCategory(ctx, cat)
}

func (c *Catalog) UpdateCategory(ctx context.Context, cat *models.Category) error {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return fmt.Errorf("category name is required: %w", models.ErrInvalidInput)
	}
	return c.repo.UpdateCategory(ctx, cat)
}

func (c *Catalog) DeleteCategory(ctx context.Context, id string) error {
	return c.repo.DeleteCategory(ctx, id)
}

// Customers

func (c *Catalog) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return c.repo.ListCustomers(ctx)
}

func (c *Catalog) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return c.repo.GetCustomer(ctx, id)
}

func (c *Catalog) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return fmt.Errorf("customer name is required: %w", models.ErrInvalidInput)
	}
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	if err := c.repo.CreateCustomer(ctx, customer); err != nil {
		return err
	}
	c.logger.Info("Customer created", zap.String("customer_id", customer.ID))
	return nil
}

func (c *Catalog) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return fmt.Errorf("customer name is required: %w", models.ErrInvalidInput)
	}
	return c.repo.UpdateCustomer(ctx, customer)
}

func (c *Catalog) DeleteCustomer(ctx context.Context, id string) error {
	return c.repo.DeleteCustomer(ctx, id)
}

// Sales journal reads

func (c *Catalog) ListSales(ctx context.Context) ([]models.Purchase, error) {
	return c.repo.ListPurchases(ctx)
}

func (c *Catalog) GetSale(ctx context.Context, id string) (*models.Purchase, error) {
	return c.repo.GetPurchase(ctx, id)
}
