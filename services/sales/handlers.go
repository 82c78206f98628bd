package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ClientUseCaseInterface define a interface para o use case de clientes
type ClientUseCaseInterface interface {
	ListClients(ctx context.Context, access Access) ([]Client, error)
	GetClient(ctx context.Context, access Access, id int64) (*Client, error)
	CreateClient(ctx context.Context, access Access, req CreateClientRequest) (*Client, error)
	UpdateClient(ctx context.Context, access Access, id int64, req UpdateClientRequest) (*Client, error)
	DeleteClient(ctx context.Context, access Access, id int64) error
}

// ProductUseCaseInterface define a interface para o use case de produtos
type ProductUseCaseInterface interface {
	ListProducts(ctx context.Context, access Access) ([]Product, error)
	GetProduct(ctx context.Context, access Access, id int64) (*Product, error)
	CreateProduct(ctx context.Context, access Access, req CreateProductRequest) (*Product, error)
	UpdateProduct(ctx context.Context, access Access, id int64, req UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, access Access, id int64) error
}

// SaleUseCaseInterface define a interface para o use case de vendas
type SaleUseCaseInterface interface {
	ListSales(ctx context.Context, access Access) ([]SaleWithProducts, error)
	GetSale(ctx context.Context, access Access, id int64) (*SaleWithProducts, error)
	CreateSale(ctx context.Context, access Access, req CreateSaleRequest) (*SaleWithProducts, error)
	UpdateSale(ctx context.Context, access Access, id int64, req UpdateSaleRequest) (*SaleWithProducts, error)
	DeleteSale(ctx context.Context, access Access, id int64) error
	UpdateProductPayment(ctx context.Context, access Access, saleID, productID int64, quantityPaid int) (*SaleProduct, error)
	RemoveProductFromSale(ctx context.Context, access Access, saleID, productID int64, quantity int) (*SaleWithProducts, error)
}

// Envelope é o formato de todas as respostas JSON
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler contém os handlers HTTP
type Handler struct {
	clients  ClientUseCaseInterface
	products ProductUseCaseInterface
	sales    SaleUseCaseInterface
	tracer   trace.Tracer
}

// NewHandler cria uma nova instância de Handler
func NewHandler(clients ClientUseCaseInterface, products ProductUseCaseInterface, sales SaleUseCaseInterface, tracer trace.Tracer) *Handler {
	return &Handler{
		clients:  clients,
		products: products,
		sales:    sales,
		tracer:   tracer,
	}
}

// NewRouter monta as rotas; tudo exceto /health exige autenticação
func NewRouter(h *Handler, verifier TokenVerifier, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(RequestLogger())

	r.GET("/health", h.HealthCheck)

	auth := AuthMiddleware(verifier)

	clients := r.Group("/clients", auth)
	clients.GET("", h.ListClients)
	clients.GET("/:id", h.GetClient)
	clients.POST("", h.CreateClient)
	clients.PUT("/:id", h.UpdateClient)
	clients.DELETE("/:id", h.DeleteClient)

	products := r.Group("/products", auth)
	products.GET("", h.ListProducts)
	products.GET("/:id", h.GetProduct)
	products.POST("", h.CreateProduct)
	products.PUT("/:id", h.UpdateProduct)
	products.DELETE("/:id", h.DeleteProduct)

	sales := r.Group("/sales", auth)
	sales.GET("", h.ListSales)
	sales.GET("/:id", h.GetSale)
	sales.POST("", h.CreateSale)
	sales.PUT("/:id", h.UpdateSale)
	sales.DELETE("/:id", h.DeleteSale)
	sales.PUT("/:id/products/:productId/payment", h.UpdateProductPayment)
	sales.DELETE("/:id/products/:productId/:quantity", h.RemoveProductFromSale)

	return r
}

// HealthCheck verifica a saúde do serviço
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "API is running successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) ListClients(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_clients")
	defer span.End()

	clients, err := h.clients.ListClients(ctx, accessFrom(c))
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: clients, Message: "Clients retrieved successfully"})
}

func (h *Handler) GetClient(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_client")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	client, err := h.clients.GetClient(ctx, accessFrom(c), id)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: client, Message: "Client retrieved successfully"})
}

func (h *Handler) CreateClient(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_client")
	defer span.End()

	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, span, NewValidationError(err.Error()))
		return
	}

	client, err := h.clients.CreateClient(ctx, accessFrom(c), req)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: client, Message: "Client created successfully"})
}

func (h *Handler) UpdateClient(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_client")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, span, NewValidationError(err.Error()))
		return
	}

	client, err := h.clients.UpdateClient(ctx, accessFrom(c), id, req)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: client, Message: "Client updated successfully"})
}

func (h *Handler) DeleteClient(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "delete_client")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	if err := h.clients.DeleteClient(ctx, accessFrom(c), id); err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Message: "Client deleted successfully"})
}

func (h *Handler) ListProducts(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_products")
	defer span.End()

	products, err := h.products.ListProducts(ctx, accessFrom(c))
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: products, Message: "Products retrieved successfully"})
}

func (h *Handler) GetProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_product")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	product, err := h.products.GetProduct(ctx, accessFrom(c), id)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: product, Message: "Product retrieved successfully"})
}

func (h *Handler) CreateProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_product")
	defer span.End()

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, span, NewValidationError(err.Error()))
		return
	}

	product, err := h.products.CreateProduct(ctx, accessFrom(c), req)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: product, Message: "Product created successfully"})
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_product")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, span, NewValidationError(err.Error()))
		return
	}

	product, err := h.products.UpdateProduct(ctx, accessFrom(c), id, req)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: product, Message: "Product updated successfully"})
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "delete_product")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	if err := h.products.DeleteProduct(ctx, accessFrom(c), id); err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Message: "Product deleted successfully"})
}

func (h *Handler) ListSales(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_sales")
	defer span.End()

	sales, err := h.sales.ListSales(ctx, accessFrom(c))
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: sales, Message: "Sales retrieved successfully"})
}

func (h *Handler) GetSale(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_sale")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	sale, err := h.sales.GetSale(ctx, accessFrom(c), id)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: sale, Message: "Sale retrieved successfully"})
}

// CreateSale cria a venda com seus itens e baixa o estoque
func (h *Handler) CreateSale(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_sale")
	defer span.End()

	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, span, NewValidationError(err.Error()))
		return
	}

	span.SetAttributes(
		attribute.Int64("client_id", req.ClientID),
		attribute.Int("items", len(req.Products)),
	)

	sale, err := h.sales.CreateSale(ctx, accessFrom(c), req)
	if err != nil {
		respondError(c, span, err)
		return
	}

	span.SetAttributes(attribute.Int64("sale_id", sale.ID))
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: sale, Message: "Sale created successfully"})
}

func (h *Handler) UpdateSale(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_sale")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	var req UpdateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, span, NewValidationError(err.Error()))
		return
	}

	sale, err := h.sales.UpdateSale(ctx, accessFrom(c), id, req)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: sale, Message: "Sale updated successfully"})
}

func (h *Handler) DeleteSale(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "delete_sale")
	defer span.End()

	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}

	if err := h.sales.DeleteSale(ctx, accessFrom(c), id); err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Message: "Sale deleted successfully"})
}

// UpdateProductPayment atualiza quantity_paid de um item da venda
func (h *Handler) UpdateProductPayment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_product_payment")
	defer span.End()

	saleID, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		respondError(c, span, err)
		return
	}

	var req UpdateProductPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, span, NewValidationError(err.Error()))
		return
	}

	span.SetAttributes(
		attribute.Int64("sale_id", saleID),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity_paid", *req.QuantityPaid),
	)

	item, err := h.sales.UpdateProductPayment(ctx, accessFrom(c), saleID, productID, *req.QuantityPaid)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: item, Message: "Product payment updated successfully"})
}

// RemoveProductFromSale retira unidades de um item da venda
func (h *Handler) RemoveProductFromSale(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "remove_product_from_sale")
	defer span.End()

	saleID, err := paramID(c, "id")
	if err != nil {
		respondError(c, span, err)
		return
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		respondError(c, span, err)
		return
	}
	quantity, err := strconv.Atoi(c.Param("quantity"))
	if err != nil {
		respondError(c, span, NewValidationError("quantity must be an integer"))
		return
	}

	sale, err := h.sales.RemoveProductFromSale(ctx, accessFrom(c), saleID, productID, quantity)
	if err != nil {
		respondError(c, span, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: sale, Message: "Product removed from sale successfully"})
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewValidationError(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// respondError registra o erro completo e devolve ao cliente só a mensagem
func respondError(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	status := http.StatusInternalServerError
	message := "Internal Server Error"
	if appErr, ok := AsAppError(err); ok {
		status = appErr.Status
		message = appErr.Message
	}

	zap.L().Error("request failed",
		zap.Error(err),
		zap.Int("status", status),
		zap.String("method", c.Request.Method),
		zap.String("url", c.Request.URL.String()),
	)

	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: message})
}
