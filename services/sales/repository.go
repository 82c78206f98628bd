package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ClientRepository define a interface para operações de banco de dados de clientes
type ClientRepository interface {
	ListClients(ctx context.Context, access Access) ([]Client, error)
	GetClient(ctx context.Context, access Access, id int64) (*Client, error)
	CreateClient(ctx context.Context, access Access, client *Client) error
	UpdateClient(ctx context.Context, access Access, id int64, req UpdateClientRequest) (*Client, error)
	DeleteClient(ctx context.Context, access Access, id int64) error
}

// ProductRepository define a interface para operações de banco de dados de produtos
type ProductRepository interface {
	ListProducts(ctx context.Context, access Access) ([]Product, error)
	GetProduct(ctx context.Context, access Access, id int64) (*Product, error)
	CreateProduct(ctx context.Context, access Access, product *Product) error
	UpdateProduct(ctx context.Context, access Access, id int64, req UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, access Access, id int64) error

	// CompareAndSetStock grava newStock somente se o estoque ainda for expected
	CompareAndSetStock(ctx context.Context, access Access, id int64, expected, newStock int) (bool, error)
}

// SaleRepository define a interface para operações de banco de dados de vendas e itens
type SaleRepository interface {
	ListSales(ctx context.Context, access Access) ([]SaleWithProducts, error)
	GetSale(ctx context.Context, access Access, id int64) (*SaleWithProducts, error)
	CreateSale(ctx context.Context, access Access, sale *Sale) error
	UpdateSale(ctx context.Context, access Access, id int64, req UpdateSaleRequest) error
	DeleteSale(ctx context.Context, access Access, id int64) error

	CreateSaleProducts(ctx context.Context, access Access, items []SaleProduct) error
	DeleteSaleProducts(ctx context.Context, access Access, saleID int64) error
	GetSaleProduct(ctx context.Context, access Access, saleID, productID int64) (*SaleProduct, error)
	UpdateSaleProductPayment(ctx context.Context, access Access, saleID, productID int64, quantityPaid int) error
	UpdateSaleProductQuantity(ctx context.Context, access Access, saleID, productID int64, quantity, quantityPaid int) error
	DeleteSaleProduct(ctx context.Context, access Access, saleID, productID int64) error
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresRepository implementa os três repositórios sobre o Gateway
type PostgresRepository struct {
	gw *Gateway
}

// NewPostgresRepository cria uma nova instância de PostgresRepository
func NewPostgresRepository(gw *Gateway) *PostgresRepository {
	return &PostgresRepository{gw: gw}
}

const clientColumns = `id, user_id, name, email, phone, address, type, created_at, updated_at`

func scanClient(row rowScanner, c *Client) error {
	return row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Type, &c.CreatedAt, &c.UpdatedAt)
}

// ListClients busca todos os clientes, mais recentes primeiro
func (r *PostgresRepository) ListClients(ctx context.Context, access Access) ([]Client, error) {
	var clients []Client
	err := r.gw.Run(ctx, access, "list_clients", func(q Querier) error {
		rows, err := q.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c Client
			if err := scanClient(rows, &c); err != nil {
				return err
			}
			clients = append(clients, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, NewStoreError(http.StatusInternalServerError, fmt.Sprintf("Failed to fetch clients: %v", err), err)
	}
	return clients, nil
}

// GetClient busca um cliente pelo ID
func (r *PostgresRepository) GetClient(ctx context.Context, access Access, id int64) (*Client, error) {
	var c Client
	err := r.gw.Run(ctx, access, "get_client", func(q Querier) error {
		return scanClient(q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id), &c)
	})
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFoundError("Client not found")
		}
		return nil, NewStoreError(http.StatusInternalServerError, "Failed to fetch client", err)
	}
	return &c, nil
}

// CreateClient insere um cliente e preenche ID e timestamps
func (r *PostgresRepository) CreateClient(ctx context.Context, access Access, client *Client) error {
	err := r.gw.Run(ctx, access, "create_client", func(q Querier) error {
		return scanClient(q.QueryRow(ctx, `
			INSERT INTO clients (user_id, name, email, phone, address, type)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+clientColumns,
			client.UserID, client.Name, client.Email, client.Phone, client.Address, client.Type,
		), client)
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to create client: %v", err), err)
	}
	return nil
}

// UpdateClient aplica uma atualização parcial
func (r *PostgresRepository) UpdateClient(ctx context.Context, access Access, id int64, req UpdateClientRequest) (*Client, error) {
	var c Client
	err := r.gw.Run(ctx, access, "update_client", func(q Querier) error {
		return scanClient(q.QueryRow(ctx, `
			UPDATE clients
			SET name = COALESCE($2, name),
			    email = COALESCE($3, email),
			    phone = COALESCE($4, phone),
			    address = COALESCE($5, address),
			    type = COALESCE($6, type),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+clientColumns,
			id, req.Name, req.Email, req.Phone, req.Address, req.Type,
		), &c)
	})
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFoundError("Client not found or failed to update")
		}
		return nil, NewStoreError(http.StatusNotFound, "Client not found or failed to update", err)
	}
	return &c, nil
}

// DeleteClient remove um cliente; falha com 409 se houver vendas vinculadas
func (r *PostgresRepository) DeleteClient(ctx context.Context, access Access, id int64) error {
	var affected int64
	err := r.gw.Run(ctx, access, "delete_client", func(q Querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return newAppError(ErrConflictReferenced,
				"Cannot delete client because they are linked to existing sales. Please remove all sales for this client first.", err)
		}
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to delete client: %v", err), err)
	}
	if affected == 0 {
		return NewNotFoundError("Client not found")
	}
	return nil
}

const productColumns = `id, user_id, name, image, stock, price, cost, created_at, updated_at`

func scanProduct(row rowScanner, p *Product) error {
	return row.Scan(&p.ID, &p.UserID, &p.Name, &p.Image, &p.Stock, &p.Price, &p.Cost, &p.CreatedAt, &p.UpdatedAt)
}

// ListProducts busca todos os produtos, mais recentes primeiro
func (r *PostgresRepository) ListProducts(ctx context.Context, access Access) ([]Product, error) {
	var products []Product
	err := r.gw.Run(ctx, access, "list_products", func(q Querier) error {
		rows, err := q.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p Product
			if err := scanProduct(rows, &p); err != nil {
				return err
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, NewStoreError(http.StatusInternalServerError, fmt.Sprintf("Failed to fetch products: %v", err), err)
	}
	return products, nil
}

// GetProduct busca um produto pelo ID
func (r *PostgresRepository) GetProduct(ctx context.Context, access Access, id int64) (*Product, error) {
	var p Product
	err := r.gw.Run(ctx, access, "get_product", func(q Querier) error {
		return scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id), &p)
	})
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFoundError("Product not found")
		}
		return nil, NewStoreError(http.StatusInternalServerError, "Failed to fetch product", err)
	}
	return &p, nil
}

// CreateProduct insere um produto e preenche ID e timestamps
func (r *PostgresRepository) CreateProduct(ctx context.Context, access Access, product *Product) error {
	err := r.gw.Run(ctx, access, "create_product", func(q Querier) error {
		return scanProduct(q.QueryRow(ctx, `
			INSERT INTO products (user_id, name, image, stock, price, cost)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+productColumns,
			product.UserID, product.Name, product.Image, product.Stock, product.Price, product.Cost,
		), product)
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to create product: %v", err), err)
	}
	return nil
}

// UpdateProduct aplica uma atualização parcial
func (r *PostgresRepository) UpdateProduct(ctx context.Context, access Access, id int64, req UpdateProductRequest) (*Product, error) {
	var p Product
	err := r.gw.Run(ctx, access, "update_product", func(q Querier) error {
		return scanProduct(q.QueryRow(ctx, `
			UPDATE products
			SET name = COALESCE($2, name),
			    image = COALESCE($3, image),
			    stock = COALESCE($4, stock),
			    price = COALESCE($5, price),
			    cost = COALESCE($6, cost),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+productColumns,
			id, req.Name, req.Image, req.Stock, req.Price, req.Cost,
		), &p)
	})
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFoundError("Product not found or failed to update")
		}
		return nil, NewStoreError(http.StatusNotFound, "Product not found or failed to update", err)
	}
	return &p, nil
}

// DeleteProduct remove um produto
func (r *PostgresRepository) DeleteProduct(ctx context.Context, access Access, id int64) error {
	var affected int64
	err := r.gw.Run(ctx, access, "delete_product", func(q Querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return newAppError(ErrConflictReferenced,
				"Cannot delete product because it is linked to existing sales.", err)
		}
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to delete product: %v", err), err)
	}
	if affected == 0 {
		return NewNotFoundError("Product not found")
	}
	return nil
}

// CompareAndSetStock atualiza o estoque com lock otimista sobre o valor lido
func (r *PostgresRepository) CompareAndSetStock(ctx context.Context, access Access, id int64, expected, newStock int) (bool, error) {
	var affected int64
	err := r.gw.Run(ctx, access, "compare_and_set_stock", func(q Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE products
			SET stock = $3,
			    updated_at = NOW()
			WHERE id = $1 AND stock = $2
		`, id, expected, newStock)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return false, NewStoreError(http.StatusInternalServerError, "Failed to update product stock", err)
	}
	return affected == 1, nil
}

const saleColumns = `s.id, s.client_id, s.delivery_method, s.payment_status, s.total, s.date, s.created_at, s.updated_at`

const saleSelect = `
	SELECT ` + saleColumns + `,
	       c.id, c.user_id, c.name, c.email, c.phone, c.address, c.type, c.created_at, c.updated_at
	FROM sales s
	LEFT JOIN clients c ON c.id = s.client_id`

const saleProductSelect = `
	SELECT sp.sale_id, sp.product_id, sp.quantity, sp.quantity_paid, sp.price, sp.cost,
	       p.id, p.user_id, p.name, p.image, p.stock, p.price, p.cost, p.created_at, p.updated_at
	FROM sale_products sp
	JOIN products p ON p.id = sp.product_id`

func scanSale(row rowScanner, s *SaleWithProducts) error {
	var (
		clientID                    *int64
		userID, phone, address, typ *string
		name, email                 *string
		createdAt, updatedAt        *time.Time
		c                           Client
	)
	err := row.Scan(
		&s.ID, &s.ClientID, &s.DeliveryMethod, &s.PaymentStatus, &s.Total, &s.Date, &s.CreatedAt, &s.UpdatedAt,
		&clientID, &userID, &name, &email, &phone, &address, &typ, &createdAt, &updatedAt,
	)
	if err != nil {
		return err
	}
	if clientID != nil {
		c.ID = *clientID
		c.UserID, c.Phone, c.Address, c.Type = userID, phone, address, typ
		if name != nil {
			c.Name = *name
		}
		if email != nil {
			c.Email = *email
		}
		if createdAt != nil {
			c.CreatedAt = *createdAt
		}
		if updatedAt != nil {
			c.UpdatedAt = *updatedAt
		}
		s.Client = &c
	}
	s.Products = []SaleProduct{}
	return nil
}

func scanSaleProduct(row rowScanner, sp *SaleProduct) error {
	var p Product
	err := row.Scan(
		&sp.SaleID, &sp.ProductID, &sp.Quantity, &sp.QuantityPaid, &sp.Price, &sp.Cost,
		&p.ID, &p.UserID, &p.Name, &p.Image, &p.Stock, &p.Price, &p.Cost, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	sp.Product = &p
	return nil
}

// loadSaleProducts carrega os itens das vendas informadas, já com o produto
func loadSaleProducts(ctx context.Context, q Querier, sales []SaleWithProducts) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(sales))
	index := make(map[int64]int, len(sales))
	for i, s := range sales {
		ids = append(ids, s.ID)
		index[s.ID] = i
	}

	rows, err := q.Query(ctx, saleProductSelect+` WHERE sp.sale_id = ANY($1) ORDER BY sp.sale_id, sp.product_id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sp SaleProduct
		if err := scanSaleProduct(rows, &sp); err != nil {
			return err
		}
		i := index[sp.SaleID]
		sales[i].Products = append(sales[i].Products, sp)
	}
	return rows.Err()
}

// ListSales busca todas as vendas com cliente e itens, mais recentes primeiro
func (r *PostgresRepository) ListSales(ctx context.Context, access Access) ([]SaleWithProducts, error) {
	var sales []SaleWithProducts
	err := r.gw.Run(ctx, access, "list_sales", func(q Querier) error {
		rows, err := q.Query(ctx, saleSelect+` ORDER BY s.created_at DESC`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var s SaleWithProducts
			if err := scanSale(rows, &s); err != nil {
				rows.Close()
				return err
			}
			sales = append(sales, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		return loadSaleProducts(ctx, q, sales)
	})
	if err != nil {
		return nil, NewStoreError(http.StatusInternalServerError, fmt.Sprintf("Failed to fetch sales: %v", err), err)
	}
	return sales, nil
}

// GetSale busca uma venda com cliente e itens
func (r *PostgresRepository) GetSale(ctx context.Context, access Access, id int64) (*SaleWithProducts, error) {
	var sale SaleWithProducts
	err := r.gw.Run(ctx, access, "get_sale", func(q Querier) error {
		if err := scanSale(q.QueryRow(ctx, saleSelect+` WHERE s.id = $1`, id), &sale); err != nil {
			return err
		}
		sales := []SaleWithProducts{sale}
		if err := loadSaleProducts(ctx, q, sales); err != nil {
			return err
		}
		sale = sales[0]
		return nil
	})
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFoundError("Sale not found")
		}
		return nil, NewStoreError(http.StatusInternalServerError, "Failed to fetch sale", err)
	}
	return &sale, nil
}

// CreateSale insere o cabeçalho da venda e preenche ID e timestamps
func (r *PostgresRepository) CreateSale(ctx context.Context, access Access, sale *Sale) error {
	err := r.gw.Run(ctx, access, "create_sale", func(q Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO sales (client_id, delivery_method, payment_status, total, date)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`, sale.ClientID, sale.DeliveryMethod, sale.PaymentStatus, sale.Total, sale.Date,
		).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to create sale: %v", err), err)
	}
	return nil
}

// UpdateSale aplica uma atualização parcial ao cabeçalho
func (r *PostgresRepository) UpdateSale(ctx context.Context, access Access, id int64, req UpdateSaleRequest) error {
	var affected int64
	err := r.gw.Run(ctx, access, "update_sale", func(q Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE sales
			SET client_id = COALESCE($2, client_id),
			    delivery_method = COALESCE($3, delivery_method),
			    payment_status = COALESCE($4, payment_status),
			    total = COALESCE($5, total),
			    date = COALESCE($6, date),
			    updated_at = NOW()
			WHERE id = $1
		`, id, req.ClientID, req.DeliveryMethod, req.PaymentStatus, req.Total, req.Date)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return NewStoreError(http.StatusNotFound, "Sale not found or failed to update", err)
	}
	if affected == 0 {
		return NewNotFoundError("Sale not found or failed to update")
	}
	return nil
}

// DeleteSale remove a venda e, explicitamente, seus itens
func (r *PostgresRepository) DeleteSale(ctx context.Context, access Access, id int64) error {
	var affected int64
	err := r.gw.Run(ctx, access, "delete_sale", func(q Querier) error {
		if _, err := q.Exec(ctx, `DELETE FROM sale_products WHERE sale_id = $1`, id); err != nil {
			return err
		}
		tag, err := q.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to delete sale: %v", err), err)
	}
	if affected == 0 {
		return NewNotFoundError("Sale not found")
	}
	return nil
}

// insertSaleProductsSQL monta um único INSERT com uma tupla por item
func insertSaleProductsSQL(items []SaleProduct) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO sale_products (sale_id, product_id, quantity, quantity_paid, price, cost) VALUES `)

	args := make([]any, 0, len(items)*6)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, item.SaleID, item.ProductID, item.Quantity, item.QuantityPaid, item.Price, item.Cost)
	}
	return sb.String(), args
}

// CreateSaleProducts insere todos os itens em um único comando
func (r *PostgresRepository) CreateSaleProducts(ctx context.Context, access Access, items []SaleProduct) error {
	if len(items) == 0 {
		return NewValidationError("a sale needs at least one product")
	}
	err := r.gw.Run(ctx, access, "create_sale_products", func(q Querier) error {
		sql, args := insertSaleProductsSQL(items)
		_, err := q.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to create sale products: %v", err), err)
	}
	return nil
}

// DeleteSaleProducts remove todos os itens de uma venda
func (r *PostgresRepository) DeleteSaleProducts(ctx context.Context, access Access, saleID int64) error {
	err := r.gw.Run(ctx, access, "delete_sale_products", func(q Querier) error {
		_, err := q.Exec(ctx, `DELETE FROM sale_products WHERE sale_id = $1`, saleID)
		return err
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to delete sale products: %v", err), err)
	}
	return nil
}

// GetSaleProduct busca um item pela chave composta, já com o produto
func (r *PostgresRepository) GetSaleProduct(ctx context.Context, access Access, saleID, productID int64) (*SaleProduct, error) {
	var sp SaleProduct
	err := r.gw.Run(ctx, access, "get_sale_product", func(q Querier) error {
		return scanSaleProduct(q.QueryRow(ctx,
			saleProductSelect+` WHERE sp.sale_id = $1 AND sp.product_id = $2`, saleID, productID), &sp)
	})
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFoundError("Sale product not found")
		}
		return nil, NewStoreError(http.StatusInternalServerError, "Failed to fetch sale product", err)
	}
	return &sp, nil
}

// UpdateSaleProductPayment grava quantity_paid de um item
func (r *PostgresRepository) UpdateSaleProductPayment(ctx context.Context, access Access, saleID, productID int64, quantityPaid int) error {
	var affected int64
	err := r.gw.Run(ctx, access, "update_sale_product_payment", func(q Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE sale_products
			SET quantity_paid = $3
			WHERE sale_id = $1 AND product_id = $2
		`, saleID, productID, quantityPaid)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to update product payment: %v", err), err)
	}
	if affected == 0 {
		return NewNotFoundError("Sale product not found")
	}
	return nil
}

// UpdateSaleProductQuantity grava a nova quantidade e o pagamento ajustado
func (r *PostgresRepository) UpdateSaleProductQuantity(ctx context.Context, access Access, saleID, productID int64, quantity, quantityPaid int) error {
	var affected int64
	err := r.gw.Run(ctx, access, "update_sale_product_quantity", func(q Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE sale_products
			SET quantity = $3, quantity_paid = $4
			WHERE sale_id = $1 AND product_id = $2
		`, saleID, productID, quantity, quantityPaid)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to update sale product: %v", err), err)
	}
	if affected == 0 {
		return NewNotFoundError("Sale product not found")
	}
	return nil
}

// DeleteSaleProduct remove um item da venda
func (r *PostgresRepository) DeleteSaleProduct(ctx context.Context, access Access, saleID, productID int64) error {
	var affected int64
	err := r.gw.Run(ctx, access, "delete_sale_product", func(q Querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM sale_products WHERE sale_id = $1 AND product_id = $2`, saleID, productID)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return NewStoreError(http.StatusBadRequest, fmt.Sprintf("Failed to remove product from sale: %v", err), err)
	}
	if affected == 0 {
		return NewNotFoundError("Sale product not found")
	}
	return nil
}
