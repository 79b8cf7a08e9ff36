package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"pos-service/internal/models"
)

// PostgresStore is the durable Repository backend. Checkout atomicity is
// delegated to a transaction with per-product row locks.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Products

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY name")
	return products, err
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category_id, price, stock, expiration_date, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Description, p.CategoryID, p.Price, p.Stock, p.ExpirationDate, p.ImageURL, p.CreatedAt)
	return err
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, category_id = $3, price = $4, stock = $5,
		    expiration_date = $6, image_url = $7
		WHERE id = $8`,
		p.Name, p.Description, p.CategoryID, p.Price, p.Stock, p.ExpirationDate, p.ImageURL, p.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, models.ErrProductNotFound)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return checkAffected(res, models.ErrProductNotFound)
}

func (s *PostgresStore) SetStock(ctx context.Context, id string, stock int) (int, error) {
	if stock < 0 {
		return 0, fmt.Errorf("stock must not be negative: %d: %w", stock, models.ErrInvalidInput)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var old int
	err = tx.GetContext(ctx, &old, "SELECT stock FROM products WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE products SET stock = $1 WHERE id = $2", stock, id); err != nil {
		return 0, err
	}
	return old, tx.Commit()
}

// Categories

func (s *PostgresStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY name")
	return categories, err
}

func (s *PostgresStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c *models.Category) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, icon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Icon, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, c *models.Category) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		"UPDATE categories SET name = $1, icon = $2, updated_at = $3 WHERE id = $4",
		c.Name, c.Icon, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, models.ErrCategoryNotFound)
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	return checkAffected(res, models.ErrCategoryNotFound)
}

// Customers

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	if err := s.db.SelectContext(ctx, &customers, "SELECT * FROM customers ORDER BY name"); err != nil {
		return nil, err
	}
	for i := range customers {
		ids, err := s.purchaseIDs(ctx, customers[i].ID)
		if err != nil {
			return nil, err
		}
		customers[i].PurchaseIDs = ids
	}
	return customers, nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	ids, err := s.purchaseIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	customer.PurchaseIDs = ids
	return &customer, nil
}

func (s *PostgresStore) purchaseIDs(ctx context.Context, customerID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT purchase_id FROM customer_purchases WHERE customer_id = $1 ORDER BY seq", customerID)
	return ids, err
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, account_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.AccountBalance, c.CreatedAt)
	return err
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	// Balance is owned by the ledger operations, not the profile update.
	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET name = $1, phone = $2, email = $3, address = $4 WHERE id = $5",
		c.Name, c.Phone, c.Email, c.Address, c.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, models.ErrCustomerNotFound)
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		return err
	}
	return checkAffected(res, models.ErrCustomerNotFound)
}

func (s *PostgresStore) AdjustBalance(ctx context.Context, customerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.GetContext(ctx, &balance,
		"UPDATE customers SET account_balance = account_balance + $1 WHERE id = $2 RETURNING account_balance",
		delta, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, models.ErrCustomerNotFound
	}
	return balance, err
}

func (s *PostgresStore) AppendPurchase(ctx context.Context, customerID, purchaseID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_purchases (customer_id, purchase_id)
		SELECT $1, $2 WHERE EXISTS (SELECT 1 FROM customers WHERE id = $1)`,
		customerID, purchaseID)
	if err != nil {
		return err
	}
	return checkAffected(res, models.ErrCustomerNotFound)
}

// Sales journal

type purchaseRow struct {
	ID                  string              `db:"id"`
	Date                time.Time           `db:"date"`
	Total               decimal.Decimal     `db:"total"`
	PaymentMethod       string              `db:"payment_method"`
	PaymentStatus       string              `db:"payment_status"`
	CustomerID          sql.NullString      `db:"customer_id"`
	CashReceived        decimal.NullDecimal `db:"cash_received"`
	CashChange          decimal.NullDecimal `db:"cash_change"`
	DiscountType        sql.NullString      `db:"discount_type"`
	DiscountValue       decimal.NullDecimal `db:"discount_value"`
	DiscountDescription sql.NullString      `db:"discount_description"`
}

func (r purchaseRow) toModel() models.Purchase {
	p := models.Purchase{
		ID:            r.ID,
		Date:          r.Date,
		Total:         r.Total,
		PaymentMethod: r.PaymentMethod,
		PaymentStatus: r.PaymentStatus,
		CustomerID:    r.CustomerID.String,
	}
	if r.CashReceived.Valid {
		v := r.CashReceived.Decimal
		p.CashReceived = &v
	}
	if r.CashChange.Valid {
		v := r.CashChange.Decimal
		p.CashChange = &v
	}
	if r.DiscountType.Valid {
		p.Discount = &models.Discount{
			Type:        r.DiscountType.String,
			Value:       r.DiscountValue.Decimal,
			Description: r.DiscountDescription.String,
		}
	}
	return p
}

// CommitSale runs the whole sale in one transaction: lock every affected
// product row, re-check stock, decrement, debit the customer when the sale is
// on account, and append the purchase. Rows are locked in sorted product
// order so concurrent checkouts cannot deadlock.
func (s *PostgresStore) CommitSale(ctx context.Context, sale Sale) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p := &sale.Purchase

	need, err := lineQuantities(p.Lines)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	// Lock rows in a fixed order so concurrent sales over overlapping
	// products cannot deadlock.
	sort.Strings(ids)

	for _, id := range ids {
		var stock int
		err := tx.GetContext(ctx, &stock,
			"SELECT stock FROM products WHERE id = $1 FOR UPDATE", id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("line %s: %w", id, models.ErrProductNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock product %s: %w", id, err)
		}
		if stock < need[id] {
			return fmt.Errorf("product %s: have %d, need %d: %w",
				id, stock, need[id], models.ErrInsufficientStock)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2",
			need[id], id); err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	if sale.CustomerDebit != nil {
		res, err := tx.ExecContext(ctx,
			"UPDATE customers SET account_balance = account_balance - $1 WHERE id = $2",
			*sale.CustomerDebit, p.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to debit customer: %w", err)
		}
		if err := checkAffected(res, models.ErrCustomerNotFound); err != nil {
			return err
		}
	}

	var customerID, discountType, discountDescription *string
	var cashReceived, cashChange, discountValue *decimal.Decimal
	if p.CustomerID != "" {
		customerID = &p.CustomerID
	}
	cashReceived = p.CashReceived
	cashChange = p.CashChange
	if p.Discount != nil {
		discountType = &p.Discount.Type
		discountValue = &p.Discount.Value
		if p.Discount.Description != "" {
			discountDescription = &p.Discount.Description
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (id, date, total, payment_method, payment_status, customer_id,
		                       cash_received, cash_change, discount_type, discount_value, discount_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Date, p.Total, p.PaymentMethod, p.PaymentStatus, customerID,
		cashReceived, cashChange, discountType, discountValue, discountDescription); err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}

	for _, line := range p.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_lines (purchase_id, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID, line.ProductID, line.ProductName, line.UnitPrice, line.Quantity); err != nil {
			return fmt.Errorf("failed to insert purchase line: %w", err)
		}
	}

	if sale.CustomerDebit != nil {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO customer_purchases (customer_id, purchase_id) VALUES ($1, $2)",
			p.CustomerID, p.ID); err != nil {
			return fmt.Errorf("failed to append purchase history: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) ListPurchases(ctx context.Context) ([]models.Purchase, error) {
	var rows []purchaseRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM purchases ORDER BY date"); err != nil {
		return nil, err
	}
	out := make([]models.Purchase, 0, len(rows))
	for _, row := range rows {
		p := row.toModel()
		lines, err := s.purchaseLines(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Lines = lines
		out = append(out, p)
	}
	return out, nil
}

func (s *PostgresStore) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var row purchaseRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM purchases WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	p := row.toModel()
	lines, err := s.purchaseLines(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Lines = lines
	return &p, nil
}

func (s *PostgresStore) ListPurchasesByCustomer(ctx context.Context, customerID string) ([]models.Purchase, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	var rows []purchaseRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM purchases WHERE customer_id = $1 ORDER BY date", customerID); err != nil {
		return nil, err
	}
	out := make([]models.Purchase, 0, len(rows))
	for _, row := range rows {
		p := row.toModel()
		lines, err := s.purchaseLines(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Lines = lines
		out = append(out, p)
	}
	return out, nil
}

func (s *PostgresStore) purchaseLines(ctx context.Context, purchaseID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := s.db.SelectContext(ctx, &lines, `
		SELECT product_id, product_name, unit_price, quantity
		FROM purchase_lines WHERE purchase_id = $1 ORDER BY product_id`, purchaseID)
	return lines, err
}

// Consumer idempotency

func (s *PostgresStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

func (s *PostgresStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
