package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"pos-service/internal/cart"
	"pos-service/internal/models"
	"pos-service/internal/service"
	"pos-service/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog  *service.Catalog
	carts    *cart.Ledger
	checkout *service.Checkout
	accounts *service.Accounts
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog *service.Catalog, carts *cart.Ledger, checkout *service.Checkout, accounts *service.Accounts) *Handler {
	return &Handler{
		catalog:  catalog,
		carts:    carts,
		checkout: checkout,
		accounts: accounts,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.POST("/products", h.createProduct)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.PUT("/products/:id/stock", h.setStock)

		v1.GET("/categories", h.listCategories)
		v1.POST("/categories", h.createCategory)
		v1.GET("/categories/:id", h.getCategory)
		v1.PUT("/categories/:id", h.updateCategory)
		v1.DELETE("/categories/:id", h.deleteCategory)

		v1.GET("/customers", h.listCustomers)
		v1.POST("/customers", h.createCustomer)
		v1.GET("/customers/:id", h.getCustomer)
		v1.PUT("/customers/:id", h.updateCustomer)
		v1.DELETE("/customers/:id", h.deleteCustomer)
		v1.GET("/customers/:id/balance", h.getBalance)
		v1.GET("/customers/:id/purchases", h.customerPurchases)
		v1.POST("/customers/:id/debt-payments", h.recordDebtPayment)

		v1.GET("/carts/:id", h.getCart)
		v1.DELETE("/carts/:id", h.clearCart)
		v1.POST("/carts/:id/items", h.addCartItem)
		v1.PUT("/carts/:id/items/:productId", h.setCartItemQuantity)
		v1.DELETE("/carts/:id/items/:productId", h.removeCartItem)

		v1.POST("/checkout", h.doCheckout)

		v1.GET("/sales", h.listSales)
		v1.GET("/sales/:id", h.getSale)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// errorResponse maps domain error kinds to HTTP statuses. Domain errors are
// always caller-correctable, so nothing here is a 5xx.
func errorResponse(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrCustomerNotFound),
		errors.Is(err, models.ErrCategoryNotFound),
		errors.Is(err, models.ErrPurchaseNotFound),
		errors.Is(err, models.ErrCartNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInsufficientCash):
		status = http.StatusConflict
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrCustomerRequired),
		errors.Is(err, models.ErrInvalidCashAmount),
		errors.Is(err, models.ErrInvalidDiscount),
		errors.Is(err, models.ErrInvalidDebtPayment),
		errors.Is(err, models.ErrInvalidPayment),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Products

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := h.catalog.CreateProduct(c.Request.Context(), &product); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	product.ID = c.Param("id")
	if err := h.catalog.UpdateProduct(c.Request.Context(), &product); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setStockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

func (h *Handler) setStock(c *gin.Context) {
	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := h.catalog.SetStock(c.Request.Context(), c.Param("id"), *req.Stock); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": c.Param("id"), "stock": *req.Stock})
}

// Categories

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) getCategory(c *gin.Context) {
	category, err := h.catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) createCategory(c *gin.Context) {
	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := h.catalog.CreateCategory(c.Request.Context(), &category); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) updateCategory(c *gin.Context) {
	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	category.ID = c.Param("id")
	if err := h.catalog.UpdateCategory(c.Request.Context(), &category); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Customers

func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.catalog.ListCustomers(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *Handler) getCustomer(c *gin.Context) {
	customer, err := h.catalog.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) createCustomer(c *gin.Context) {
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := h.catalog.CreateCustomer(c.Request.Context(), &customer); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) updateCustomer(c *gin.Context) {
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	customer.ID = c.Param("id")
	if err := h.catalog.UpdateCustomer(c.Request.Context(), &customer); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	if err := h.catalog.DeleteCustomer(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getBalance(c *gin.Context) {
	balance, err := h.accounts.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": c.Param("id"), "balance": balance})
}

func (h *Handler) customerPurchases(c *gin.Context) {
	purchases, err := h.accounts.PurchaseHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

type debtPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (h *Handler) recordDebtPayment(c *gin.Context) {
	var req debtPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	result, err := h.accounts.RecordDebtPayment(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Carts

func (h *Handler) getCart(c *gin.Context) {
	ctx := c.Request.Context()
	cartID := c.Param("id")

	lines, err := h.carts.Lines(ctx, cartID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	subtotal, err := h.carts.Subtotal(ctx, cartID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	count, err := h.carts.TotalItemCount(ctx, cartID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cart_id":    cartID,
		"lines":      lines,
		"subtotal":   subtotal,
		"item_count": count,
	})
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := h.carts.AddLine(c.Request.Context(), c.Param("id"), req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			util.CartAddsRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		} else if errors.Is(err, models.ErrProductExpired) {
			util.CartAddsRejectedTotal.WithLabelValues("expired").Inc()
		}
		errorResponse(c, err)
		return
	}
	util.CartLinesAddedTotal.Inc()
	c.JSON(http.StatusOK, line)
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) setCartItemQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := h.carts.SetLineQuantity(c.Request.Context(), c.Param("id"), c.Param("productId"), *req.Quantity); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	if err := h.carts.RemoveLine(c.Request.Context(), c.Param("id"), c.Param("productId")); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Checkout

func (h *Handler) doCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), &req)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Sales

func (h *Handler) listSales(c *gin.Context) {
	sales, err := h.catalog.ListSales(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *Handler) getSale(c *gin.Context) {
	sale, err := h.catalog.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
