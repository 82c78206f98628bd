package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Valores monetários saem como número JSON, não como string
	decimal.MarshalJSONWithoutQuotes = true
}

// Client representa um cliente no sistema
type Client struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *string   `json:"user_id,omitempty" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Address   *string   `json:"address,omitempty" db:"address"`
	Type      *string   `json:"type,omitempty" db:"type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Product representa um produto e seu estoque
type Product struct {
	ID        int64           `json:"id" db:"id"`
	UserID    *string         `json:"user_id,omitempty" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Image     *string         `json:"image,omitempty" db:"image"`
	Stock     int             `json:"stock" db:"stock"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Cost      decimal.Decimal `json:"cost" db:"cost"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// StockAfterDecrease calcula o novo estoque sem alterar o produto.
// Retorna ErrInsufficientStock se o resultado ficaria negativo.
func (p *Product) StockAfterDecrease(quantity int) (int, error) {
	if quantity <= 0 {
		return 0, NewValidationError("quantity must be greater than 0")
	}
	newStock := p.Stock - quantity
	if newStock < 0 {
		return 0, &AppError{
			Kind:    ErrInsufficientStock,
			Status:  ErrInsufficientStock.Status,
			Message: "Insufficient stock",
			Err:     fmt.Errorf("product %d has %d units, requested %d", p.ID, p.Stock, quantity),
		}
	}
	return newStock, nil
}

// StockAfterIncrease calcula o estoque após uma devolução
func (p *Product) StockAfterIncrease(quantity int) (int, error) {
	if quantity <= 0 {
		return 0, NewValidationError("quantity must be greater than 0")
	}
	return p.Stock + quantity, nil
}

// Sale representa o cabeçalho de uma venda
type Sale struct {
	ID             int64           `json:"id" db:"id"`
	ClientID       int64           `json:"client_id" db:"client_id"`
	DeliveryMethod string          `json:"delivery_method" db:"delivery_method"`
	PaymentStatus  string          `json:"payment_status" db:"payment_status"`
	Total          decimal.Decimal `json:"total" db:"total"`
	Date           time.Time       `json:"date" db:"date"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// SaleProduct representa um item de uma venda, identificado por (sale_id, product_id).
// Price e Cost são copiados no momento da venda.
type SaleProduct struct {
	SaleID       int64           `json:"sale_id" db:"sale_id"`
	ProductID    int64           `json:"product_id" db:"product_id"`
	Quantity     int             `json:"quantity" db:"quantity"`
	QuantityPaid int             `json:"quantity_paid" db:"quantity_paid"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Cost         decimal.Decimal `json:"cost" db:"cost"`
	Product      *Product        `json:"product,omitempty"`
}

// ValidatePayment verifica se quantityPaid está entre 0 e a quantidade do item
func (sp *SaleProduct) ValidatePayment(quantityPaid int) error {
	if quantityPaid < 0 || quantityPaid > sp.Quantity {
		return &AppError{
			Kind:    ErrInvalidPayment,
			Status:  ErrInvalidPayment.Status,
			Message: fmt.Sprintf("quantity_paid must be between 0 and %d", sp.Quantity),
		}
	}
	return nil
}

// Remove calcula o efeito de retirar quantity unidades do item.
// Retorna deleteRow=true quando o item inteiro sai da venda.
func (sp *SaleProduct) Remove(quantity int) (remaining int, quantityPaid int, deleteRow bool, err error) {
	if quantity <= 0 {
		return 0, 0, false, NewValidationError("quantity to remove must be greater than 0")
	}
	if quantity > sp.Quantity {
		return 0, 0, false, NewValidationError(
			fmt.Sprintf("quantity to remove must be between 1 and %d", sp.Quantity))
	}

	remaining = sp.Quantity - quantity
	if remaining == 0 {
		return 0, 0, true, nil
	}

	quantityPaid = sp.QuantityPaid
	if quantityPaid > remaining {
		quantityPaid = remaining
	}
	return remaining, quantityPaid, false, nil
}

// SaleWithProducts é a venda com cliente e itens agregados
type SaleWithProducts struct {
	Sale
	Client   *Client       `json:"client,omitempty"`
	Products []SaleProduct `json:"products"`
}

// CreateClientRequest representa a requisição para criar um cliente
type CreateClientRequest struct {
	Name    string  `json:"name" binding:"required"`
	Email   string  `json:"email" binding:"required,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Type    *string `json:"type"`
}

// UpdateClientRequest representa uma atualização parcial de cliente
type UpdateClientRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Type    *string `json:"type"`
}

// CreateProductRequest representa a requisição para criar um produto
type CreateProductRequest struct {
	Name  string          `json:"name" binding:"required"`
	Image *string         `json:"image"`
	Stock int             `json:"stock" binding:"gte=0"`
	Price decimal.Decimal `json:"price"`
	Cost  decimal.Decimal `json:"cost"`
}

// UpdateProductRequest representa uma atualização parcial de produto
type UpdateProductRequest struct {
	Name  *string          `json:"name"`
	Image *string          `json:"image"`
	Stock *int             `json:"stock" binding:"omitempty,gte=0"`
	Price *decimal.Decimal `json:"price"`
	Cost  *decimal.Decimal `json:"cost"`
}

// SaleProductRequest representa um item na criação de uma venda
type SaleProductRequest struct {
	ProductID int64           `json:"product_id" binding:"required,gt=0"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
}

// CreateSaleRequest representa a requisição para criar uma venda com seus itens
type CreateSaleRequest struct {
	ClientID       int64                `json:"client_id" binding:"required,gt=0"`
	DeliveryMethod string               `json:"delivery_method" binding:"required"`
	PaymentStatus  string               `json:"payment_status" binding:"required"`
	Total          decimal.Decimal      `json:"total"`
	Date           *time.Time           `json:"date"`
	Products       []SaleProductRequest `json:"products" binding:"required,min=1,dive"`
}

// Validate verifica as regras que as tags de binding não cobrem
func (r CreateSaleRequest) Validate() error {
	if len(r.Products) == 0 {
		return NewValidationError("a sale needs at least one product")
	}
	if r.Total.IsNegative() {
		return NewValidationError("total must not be negative")
	}

	seen := make(map[int64]struct{}, len(r.Products))
	for _, p := range r.Products {
		if p.Quantity <= 0 {
			return NewValidationError(fmt.Sprintf("quantity for product %d must be greater than 0", p.ProductID))
		}
		if p.Price.IsNegative() || p.Cost.IsNegative() {
			return NewValidationError(fmt.Sprintf("price and cost for product %d must not be negative", p.ProductID))
		}
		if _, dup := seen[p.ProductID]; dup {
			return NewValidationError(fmt.Sprintf("product %d appears more than once", p.ProductID))
		}
		seen[p.ProductID] = struct{}{}
	}
	return nil
}

// NewSale cria o cabeçalho da venda; a data padrão é o momento atual
func NewSale(req CreateSaleRequest) *Sale {
	now := time.Now()
	date := now
	if req.Date != nil && !req.Date.IsZero() {
		date = *req.Date
	}
	return &Sale{
		ClientID:       req.ClientID,
		DeliveryMethod: req.DeliveryMethod,
		PaymentStatus:  req.PaymentStatus,
		Total:          req.Total,
		Date:           date,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewSaleProducts monta uma linha por item, na ordem de entrada
func NewSaleProducts(saleID int64, items []SaleProductRequest) []SaleProduct {
	rows := make([]SaleProduct, 0, len(items))
	for _, item := range items {
		rows = append(rows, SaleProduct{
			SaleID:    saleID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Cost:      item.Cost,
		})
	}
	return rows
}

// UpdateSaleRequest representa uma atualização parcial do cabeçalho da venda
type UpdateSaleRequest struct {
	ClientID       *int64           `json:"client_id" binding:"omitempty,gt=0"`
	DeliveryMethod *string          `json:"delivery_method"`
	PaymentStatus  *string          `json:"payment_status"`
	Total          *decimal.Decimal `json:"total"`
	Date           *time.Time       `json:"date"`
}

// UpdateProductPaymentRequest representa o pagamento parcial de um item
type UpdateProductPaymentRequest struct {
	QuantityPaid *int `json:"quantity_paid" binding:"required"`
}

// Access identifica o chamador em cada acesso ao banco; UserID vazio
// significa credencial do serviço
type Access struct {
	UserID string
}

// Owner retorna o usuário dono dos registros criados, ou nil para acesso de serviço
func (a Access) Owner() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}
