package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/core/service"
	"github.com/rl1809/salespoint-inventory/internal/platform/metrics"
)

const requestIDHeader = "X-Request-ID"

type HTTPHandler struct {
	catalog   *service.CatalogService
	inventory *service.InventoryService
	orders    *service.OrderService
	metrics   *metrics.HTTPMetrics
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

func NewHTTPHandler(catalog *service.CatalogService, inventory *service.InventoryService, orders *service.OrderService, m *metrics.HTTPMetrics, gatherer prometheus.Gatherer, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		catalog:   catalog,
		inventory: inventory,
		orders:    orders,
		metrics:   m,
		gatherer:  gatherer,
		logger:    logger,
	}
}

// Router builds the gin engine with every route and middleware installed.
func (h *HTTPHandler) Router(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(h.requestID())
	r.Use(h.recordMetrics())

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AddAllowHeaders(requestIDHeader)
	corsConfig.AddExposeHeaders(requestIDHeader)
	r.Use(cors.New(corsConfig))
	r.Use(gin.Recovery())

	r.GET("/health", h.HealthCheck)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(h.gatherer)))
	}

	api := r.Group("/api")

	products := api.Group("/products")
	products.POST("", h.AddProduct)
	products.GET("/:id", h.GetProduct)

	inventory := api.Group("/inventory")
	inventory.POST("", h.AddInventoryItem)
	inventory.GET("/out-of-stock", h.OutOfStock)
	inventory.GET("/products/:product_id", h.StockForProduct)
	inventory.GET("/:id", h.GetInventoryItem)
	inventory.DELETE("/:id", h.DeleteInventoryItem)
	inventory.POST("/:id/restock", h.Restock)

	orders := api.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/pay", h.PayOrder)
	orders.POST("/:id/complete", h.CompleteOrder)
	orders.POST("/:id/cancel", h.CancelOrder)

	return r
}

func (h *HTTPHandler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (h *HTTPHandler) recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Don't record metrics for /metrics endpoint itself
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		h.metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

type errorResponse struct {
	Error  string                   `json:"error"`
	Report *domain.CompletionReport `json:"report,omitempty"`
}

// writeError maps domain and service errors to HTTP statuses.
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	var (
		failure  *domain.CompletionFailure
		conflict *domain.UniquenessConflictError
	)

	switch {
	case errors.As(err, &failure):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Report: &failure.Report})
		return
	case errors.As(err, &conflict),
		errors.Is(err, domain.ErrUniquenessConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, domain.ErrIncompatibleMetric),
		errors.Is(err, domain.ErrCurrencyMismatch):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	h.logger.Error("request failed",
		zap.String("request_id", c.GetString("request_id")),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	message := "internal error"
	if errors.Is(err, domain.ErrInventoryConsistency) || errors.Is(err, domain.ErrInconsistentStock) {
		message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, errorResponse{Error: message})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type productResponse struct {
	ID        domain.ProductIdentifier `json:"id"`
	Name      string                   `json:"name"`
	Price     string                   `json:"price"`
	Metric    domain.Metric            `json:"metric"`
	CreatedAt time.Time                `json:"created_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price.String(),
		Metric:    p.Metric,
		CreatedAt: p.CreatedAt,
	}
}

func (h *HTTPHandler) AddProduct(c *gin.Context) {
	var req service.NewProduct
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	p, err := h.catalog.AddProduct(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(p))
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Product(c.Request.Context(), domain.ProductIdentifier(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

type inventoryItemResponse struct {
	ID        domain.InventoryItemIdentifier `json:"id"`
	ProductID domain.ProductIdentifier       `json:"product_id"`
	Quantity  domain.Quantity                `json:"quantity"`
	Unique    bool                           `json:"unique"`
	Version   int                            `json:"version"`
	UpdatedAt time.Time                      `json:"updated_at"`
}

func toInventoryItemResponse(item domain.InventoryItem) inventoryItemResponse {
	return inventoryItemResponse{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Unique:    item.Unique,
		Version:   item.Version,
		UpdatedAt: item.UpdatedAt,
	}
}

func toInventoryItemResponses(items []domain.InventoryItem) []inventoryItemResponse {
	out := make([]inventoryItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toInventoryItemResponse(it))
	}
	return out
}

type stockResponse struct {
	ProductID domain.ProductIdentifier `json:"product_id"`
	Kind      string                   `json:"kind"`
	Total     domain.Quantity          `json:"total"`
	Items     []inventoryItemResponse  `json:"items"`
}

func (h *HTTPHandler) AddInventoryItem(c *gin.Context) {
	var req service.NewInventoryItem
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	item, err := h.inventory.AddItem(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInventoryItemResponse(item))
}

func (h *HTTPHandler) GetInventoryItem(c *gin.Context) {
	item, err := h.inventory.Item(c.Request.Context(), domain.InventoryItemIdentifier(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInventoryItemResponse(item))
}

func (h *HTTPHandler) DeleteInventoryItem(c *gin.Context) {
	if err := h.inventory.Delete(c.Request.Context(), domain.InventoryItemIdentifier(c.Param("id"))); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) StockForProduct(c *gin.Context) {
	productID := domain.ProductIdentifier(c.Param("product_id"))
	stock, err := h.inventory.StockFor(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	total, err := stock.TotalQuantity()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stockResponse{
		ProductID: productID,
		Kind:      stock.Kind().String(),
		Total:     total,
		Items:     toInventoryItemResponses(stock.Items()),
	})
}

func (h *HTTPHandler) OutOfStock(c *gin.Context) {
	items, err := h.inventory.OutOfStock(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toInventoryItemResponses(items)})
}

type restockRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Metric string          `json:"metric"`
}

func (h *HTTPHandler) Restock(c *gin.Context) {
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	id := domain.InventoryItemIdentifier(c.Param("id"))

	var metric domain.Metric
	if req.Metric == "" {
		item, err := h.inventory.Item(ctx, id)
		if err != nil {
			h.writeError(c, err)
			return
		}
		metric = item.Quantity.Metric()
	} else {
		m, err := domain.ParseMetric(req.Metric)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		metric = m
	}

	item, err := h.inventory.Restock(ctx, id, domain.NewQuantity(req.Amount, metric))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInventoryItemResponse(item))
}

func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	var req service.NewOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.Order(c.Request.Context(), domain.OrderIdentifier(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) PayOrder(c *gin.Context) {
	order, err := h.orders.Pay(c.Request.Context(), domain.OrderIdentifier(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type completeOrderResponse struct {
	Order  domain.Order            `json:"order"`
	Report domain.CompletionReport `json:"report"`
}

func (h *HTTPHandler) CompleteOrder(c *gin.Context) {
	order, report, err := h.orders.Complete(c.Request.Context(), domain.OrderIdentifier(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, completeOrderResponse{Order: order, Report: report})
}

func (h *HTTPHandler) CancelOrder(c *gin.Context) {
	order, err := h.orders.Cancel(c.Request.Context(), domain.OrderIdentifier(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
