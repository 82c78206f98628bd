package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// memStore implementa os três repositórios em memória para os testes
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	clients  map[int64]Client
	products map[int64]Product
	sales    map[int64]Sale
	items    map[int64]map[int64]SaleProduct

	// falhas injetadas
	failCreateSale         error
	failCreateSaleProducts error
	failDeleteSale         error
	failPaymentUpdate      error

	// beforeCAS roda antes de cada compare-and-set, fora do lock
	beforeCAS func(id int64)

	deleteSaleCalls int
}

func newMemStore() *memStore {
	return &memStore{
		clients:  map[int64]Client{},
		products: map[int64]Product{},
		sales:    map[int64]Sale{},
		items:    map[int64]map[int64]SaleProduct{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) seedClient(name string) Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Client{ID: m.id(), Name: name, Email: name + "@example.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.clients[c.ID] = c
	return c
}

func (m *memStore) seedProduct(name string, stock int, price, cost int64) Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Product{
		ID:        m.id(),
		Name:      name,
		Stock:     stock,
		Price:     decimal.NewFromInt(price),
		Cost:      decimal.NewFromInt(cost),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.products[p.ID] = p
	return p
}

func (m *memStore) stockOf(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, byProduct := range m.items {
		n += len(byProduct)
	}
	return n
}

func (m *memStore) ListClients(ctx context.Context, access Access) ([]Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Client
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) GetClient(ctx context.Context, access Access, id int64) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, NewNotFoundError("Client not found")
	}
	return &c, nil
}

func (m *memStore) CreateClient(ctx context.Context, access Access, client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client.ID = m.id()
	client.CreatedAt, client.UpdatedAt = time.Now(), time.Now()
	m.clients[client.ID] = *client
	return nil
}

func (m *memStore) UpdateClient(ctx context.Context, access Access, id int64, req UpdateClientRequest) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, NewNotFoundError("Client not found or failed to update")
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	c.UpdatedAt = time.Now()
	m.clients[id] = c
	return &c, nil
}

func (m *memStore) DeleteClient(ctx context.Context, access Access, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return NewNotFoundError("Client not found")
	}
	for _, s := range m.sales {
		if s.ClientID == id {
			return newAppError(ErrConflictReferenced,
				"Cannot delete client because they are linked to existing sales. Please remove all sales for this client first.", nil)
		}
	}
	delete(m.clients, id)
	return nil
}

func (m *memStore) ListProducts(ctx context.Context, access Access) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) GetProduct(ctx context.Context, access Access, id int64) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, NewNotFoundError("Product not found")
	}
	return &p, nil
}

func (m *memStore) CreateProduct(ctx context.Context, access Access, product *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = m.id()
	m.products[product.ID] = *product
	return nil
}

func (m *memStore) UpdateProduct(ctx context.Context, access Access, id int64, req UpdateProductRequest) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, NewNotFoundError("Product not found or failed to update")
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	m.products[id] = p
	return &p, nil
}

func (m *memStore) DeleteProduct(ctx context.Context, access Access, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

func (m *memStore) CompareAndSetStock(ctx context.Context, access Access, id int64, expected, newStock int) (bool, error) {
	if m.beforeCAS != nil {
		m.beforeCAS(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.Stock != expected {
		return false, nil
	}
	p.Stock = newStock
	m.products[id] = p
	return true, nil
}

func (m *memStore) saleWithProducts(id int64) (*SaleWithProducts, bool) {
	s, ok := m.sales[id]
	if !ok {
		return nil, false
	}
	out := &SaleWithProducts{Sale: s, Products: []SaleProduct{}}
	if c, ok := m.clients[s.ClientID]; ok {
		out.Client = &c
	}
	for _, item := range m.items[id] {
		p := m.products[item.ProductID]
		item.Product = &p
		out.Products = append(out.Products, item)
	}
	sort.Slice(out.Products, func(i, j int) bool { return out.Products[i].ProductID < out.Products[j].ProductID })
	return out, true
}

func (m *memStore) ListSales(ctx context.Context, access Access) ([]SaleWithProducts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SaleWithProducts
	for id := range m.sales {
		s, _ := m.saleWithProducts(id)
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) GetSale(ctx context.Context, access Access, id int64) (*SaleWithProducts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saleWithProducts(id)
	if !ok {
		return nil, NewNotFoundError("Sale not found")
	}
	return s, nil
}

func (m *memStore) CreateSale(ctx context.Context, access Access, sale *Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateSale != nil {
		return m.failCreateSale
	}
	sale.ID = m.id()
	m.sales[sale.ID] = *sale
	return nil
}

func (m *memStore) UpdateSale(ctx context.Context, access Access, id int64, req UpdateSaleRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return NewNotFoundError("Sale not found or failed to update")
	}
	if req.PaymentStatus != nil {
		s.PaymentStatus = *req.PaymentStatus
	}
	if req.DeliveryMethod != nil {
		s.DeliveryMethod = *req.DeliveryMethod
	}
	if req.Total != nil {
		s.Total = *req.Total
	}
	m.sales[id] = s
	return nil
}

func (m *memStore) DeleteSale(ctx context.Context, access Access, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteSaleCalls++
	if m.failDeleteSale != nil {
		return m.failDeleteSale
	}
	if _, ok := m.sales[id]; !ok {
		return NewNotFoundError("Sale not found")
	}
	delete(m.items, id)
	delete(m.sales, id)
	return nil
}

func (m *memStore) CreateSaleProducts(ctx context.Context, access Access, items []SaleProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateSaleProducts != nil {
		return m.failCreateSaleProducts
	}
	for _, item := range items {
		if m.items[item.SaleID] == nil {
			m.items[item.SaleID] = map[int64]SaleProduct{}
		}
		m.items[item.SaleID][item.ProductID] = item
	}
	return nil
}

func (m *memStore) DeleteSaleProducts(ctx context.Context, access Access, saleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, saleID)
	return nil
}

func (m *memStore) GetSaleProduct(ctx context.Context, access Access, saleID, productID int64) (*SaleProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[saleID][productID]
	if !ok {
		return nil, NewNotFoundError("Sale product not found")
	}
	p := m.products[productID]
	item.Product = &p
	return &item, nil
}

func (m *memStore) UpdateSaleProductPayment(ctx context.Context, access Access, saleID, productID int64, quantityPaid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPaymentUpdate != nil {
		return m.failPaymentUpdate
	}
	item, ok := m.items[saleID][productID]
	if !ok {
		return NewNotFoundError("Sale product not found")
	}
	item.QuantityPaid = quantityPaid
	m.items[saleID][productID] = item
	return nil
}

func (m *memStore) UpdateSaleProductQuantity(ctx context.Context, access Access, saleID, productID int64, quantity, quantityPaid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[saleID][productID]
	if !ok {
		return NewNotFoundError("Sale product not found")
	}
	item.Quantity = quantity
	item.QuantityPaid = quantityPaid
	m.items[saleID][productID] = item
	return nil
}

func (m *memStore) DeleteSaleProduct(ctx context.Context, access Access, saleID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[saleID][productID]; !ok {
		return NewNotFoundError("Sale product not found")
	}
	delete(m.items[saleID], productID)
	return nil
}
