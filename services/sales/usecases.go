package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ClientUseCase contém a lógica de negócio dos clientes
type ClientUseCase struct {
	repository ClientRepository
}

// NewClientUseCase cria uma nova instância de ClientUseCase
func NewClientUseCase(repository ClientRepository) *ClientUseCase {
	return &ClientUseCase{repository: repository}
}

func (uc *ClientUseCase) ListClients(ctx context.Context, access Access) ([]Client, error) {
	clients, err := uc.repository.ListClients(ctx, access)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []Client{}
	}
	return clients, nil
}

func (uc *ClientUseCase) GetClient(ctx context.Context, access Access, id int64) (*Client, error) {
	return uc.repository.GetClient(ctx, access, id)
}

// CreateClient cria um cliente pertencente ao usuário autenticado
func (uc *ClientUseCase) CreateClient(ctx context.Context, access Access, req CreateClientRequest) (*Client, error) {
	client := &Client{
		UserID:  access.Owner(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Type:    req.Type,
	}
	if err := uc.repository.CreateClient(ctx, access, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (uc *ClientUseCase) UpdateClient(ctx context.Context, access Access, id int64, req UpdateClientRequest) (*Client, error) {
	return uc.repository.UpdateClient(ctx, access, id, req)
}

func (uc *ClientUseCase) DeleteClient(ctx context.Context, access Access, id int64) error {
	return uc.repository.DeleteClient(ctx, access, id)
}

// ProductUseCase contém a lógica de negócio dos produtos
type ProductUseCase struct {
	repository ProductRepository
}

// NewProductUseCase cria uma nova instância de ProductUseCase
func NewProductUseCase(repository ProductRepository) *ProductUseCase {
	return &ProductUseCase{repository: repository}
}

func (uc *ProductUseCase) ListProducts(ctx context.Context, access Access) ([]Product, error) {
	products, err := uc.repository.ListProducts(ctx, access)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func (uc *ProductUseCase) GetProduct(ctx context.Context, access Access, id int64) (*Product, error) {
	return uc.repository.GetProduct(ctx, access, id)
}

// CreateProduct cria um produto pertencente ao usuário autenticado
func (uc *ProductUseCase) CreateProduct(ctx context.Context, access Access, req CreateProductRequest) (*Product, error) {
	if req.Stock < 0 {
		return nil, NewValidationError("stock must not be negative")
	}
	if req.Price.IsNegative() || req.Cost.IsNegative() {
		return nil, NewValidationError("price and cost must not be negative")
	}

	product := &Product{
		UserID: access.Owner(),
		Name:   req.Name,
		Image:  req.Image,
		Stock:  req.Stock,
		Price:  req.Price,
		Cost:   req.Cost,
	}
	if err := uc.repository.CreateProduct(ctx, access, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (uc *ProductUseCase) UpdateProduct(ctx context.Context, access Access, id int64, req UpdateProductRequest) (*Product, error) {
	if req.Stock != nil && *req.Stock < 0 {
		return nil, NewValidationError("stock must not be negative")
	}
	if (req.Price != nil && req.Price.IsNegative()) || (req.Cost != nil && req.Cost.IsNegative()) {
		return nil, NewValidationError("price and cost must not be negative")
	}
	return uc.repository.UpdateProduct(ctx, access, id, req)
}

func (uc *ProductUseCase) DeleteProduct(ctx context.Context, access Access, id int64) error {
	return uc.repository.DeleteProduct(ctx, access, id)
}

// SaleUseCase contém a lógica de negócio das vendas
type SaleUseCase struct {
	sales   SaleRepository
	clients ClientRepository
	stock   *StockLedger
}

// NewSaleUseCase cria uma nova instância de SaleUseCase
func NewSaleUseCase(sales SaleRepository, clients ClientRepository, stock *StockLedger) *SaleUseCase {
	return &SaleUseCase{
		sales:   sales,
		clients: clients,
		stock:   stock,
	}
}

func (uc *SaleUseCase) ListSales(ctx context.Context, access Access) ([]SaleWithProducts, error) {
	sales, err := uc.sales.ListSales(ctx, access)
	if err != nil {
		return nil, err
	}
	if sales == nil {
		sales = []SaleWithProducts{}
	}
	return sales, nil
}

func (uc *SaleUseCase) GetSale(ctx context.Context, access Access, id int64) (*SaleWithProducts, error) {
	return uc.sales.GetSale(ctx, access, id)
}

// CreateSale cria o cabeçalho, os itens e baixa o estoque de cada item.
// Qualquer falha desfaz, em ordem reversa, tudo o que já foi aplicado,
// inclusive as baixas de estoque dos itens anteriores.
func (uc *SaleUseCase) CreateSale(ctx context.Context, access Access, req CreateSaleRequest) (*SaleWithProducts, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := uc.clients.GetClient(ctx, access, req.ClientID); err != nil {
		return nil, err
	}

	sale := NewSale(req)
	uow := NewUnitOfWork("create_sale")

	zap.S().Infof("➡️ [CREATE SALE] UoW: %s | ClientID: %d | items: %d", uow.ID, req.ClientID, len(req.Products))

	uow.Add("insert_sale",
		func(ctx context.Context) error {
			return uc.sales.CreateSale(ctx, access, sale)
		},
		func(ctx context.Context) error {
			return uc.sales.DeleteSale(ctx, access, sale.ID)
		},
	)

	uow.Add("insert_sale_products",
		func(ctx context.Context) error {
			return uc.sales.CreateSaleProducts(ctx, access, NewSaleProducts(sale.ID, req.Products))
		},
		func(ctx context.Context) error {
			return uc.sales.DeleteSaleProducts(ctx, access, sale.ID)
		},
	)

	for _, item := range req.Products {
		uow.Add(fmt.Sprintf("decrease_stock:%d", item.ProductID),
			func(ctx context.Context) error {
				_, err := uc.stock.DecreaseStock(ctx, access, item.ProductID, item.Quantity)
				return err
			},
			func(ctx context.Context) error {
				_, err := uc.stock.IncreaseStock(ctx, access, item.ProductID, item.Quantity)
				return err
			},
		)
	}

	if err := uow.Execute(ctx); err != nil {
		return nil, err
	}

	zap.S().Infof("✅ [CREATE SALE] SaleID: %d | UoW: %s", sale.ID, uow.ID)
	return uc.sales.GetSale(ctx, access, sale.ID)
}

// UpdateSale altera apenas o cabeçalho; itens e estoque não mudam
func (uc *SaleUseCase) UpdateSale(ctx context.Context, access Access, id int64, req UpdateSaleRequest) (*SaleWithProducts, error) {
	if req.Total != nil && req.Total.IsNegative() {
		return nil, NewValidationError("total must not be negative")
	}
	if err := uc.sales.UpdateSale(ctx, access, id, req); err != nil {
		return nil, err
	}
	return uc.sales.GetSale(ctx, access, id)
}

func (uc *SaleUseCase) DeleteSale(ctx context.Context, access Access, id int64) error {
	return uc.sales.DeleteSale(ctx, access, id)
}

// UpdateProductPayment grava quantos itens da linha já foram pagos.
// Não altera estoque nem o total da venda.
func (uc *SaleUseCase) UpdateProductPayment(ctx context.Context, access Access, saleID, productID int64, quantityPaid int) (*SaleProduct, error) {
	item, err := uc.sales.GetSaleProduct(ctx, access, saleID, productID)
	if err != nil {
		return nil, err
	}

	if err := item.ValidatePayment(quantityPaid); err != nil {
		return nil, err
	}

	if err := uc.sales.UpdateSaleProductPayment(ctx, access, saleID, productID, quantityPaid); err != nil {
		return nil, err
	}

	zap.S().Infof("💰 [PAYMENT] SaleID: %d | ProductID: %d | quantity_paid: %d -> %d",
		saleID, productID, item.QuantityPaid, quantityPaid)
	return uc.sales.GetSaleProduct(ctx, access, saleID, productID)
}

// RemoveProductFromSale retira quantity unidades de um item; remove a
// linha quando a quantidade chega a zero. O estoque não é devolvido.
func (uc *SaleUseCase) RemoveProductFromSale(ctx context.Context, access Access, saleID, productID int64, quantity int) (*SaleWithProducts, error) {
	item, err := uc.sales.GetSaleProduct(ctx, access, saleID, productID)
	if err != nil {
		return nil, err
	}

	remaining, quantityPaid, deleteRow, err := item.Remove(quantity)
	if err != nil {
		return nil, err
	}

	if deleteRow {
		err = uc.sales.DeleteSaleProduct(ctx, access, saleID, productID)
	} else {
		err = uc.sales.UpdateSaleProductQuantity(ctx, access, saleID, productID, remaining, quantityPaid)
	}
	if err != nil {
		return nil, err
	}

	zap.S().Infof("➖ [REMOVE PRODUCT] SaleID: %d | ProductID: %d | removed: %d | remaining: %d",
		saleID, productID, quantity, remaining)
	return uc.sales.GetSale(ctx, access, saleID)
}
