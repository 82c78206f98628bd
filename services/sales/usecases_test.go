package main

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSaleFixture() (*memStore, *SaleUseCase) {
	store := newMemStore()
	uc := NewSaleUseCase(store, store, NewStockLedger(store, 3))
	return store, uc
}

func saleRequest(clientID int64, items ...SaleProductRequest) CreateSaleRequest {
	return CreateSaleRequest{
		ClientID:       clientID,
		DeliveryMethod: "pickup",
		PaymentStatus:  "pending",
		Total:          decimal.NewFromInt(100),
		Products:       items,
	}
}

func TestSaleUseCase_CreateSale(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("ana")
	product := store.seedProduct("Caneca", 10, 25, 10)

	// Act
	sale, err := uc.CreateSale(ctx, Access{UserID: "user-1"}, saleRequest(client.ID,
		SaleProductRequest{ProductID: product.ID, Quantity: 3, Price: decimal.NewFromInt(25), Cost: decimal.NewFromInt(10)}))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 7, store.stockOf(product.ID))
	require.Len(t, sale.Products, 1)
	assert.Equal(t, 3, sale.Products[0].Quantity)
	assert.Equal(t, 0, sale.Products[0].QuantityPaid)
	require.NotNil(t, sale.Client)
	assert.Equal(t, client.ID, sale.Client.ID)
}

func TestSaleUseCase_CreateSale_LineItemsMatchRequest(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("bia")
	a := store.seedProduct("A", 10, 5, 2)
	b := store.seedProduct("B", 10, 7, 3)

	// Act
	created, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: b.ID, Quantity: 4, Price: decimal.NewFromInt(7)},
		SaleProductRequest{ProductID: a.ID, Quantity: 2, Price: decimal.NewFromInt(5)},
	))
	require.NoError(t, err)
	sale, err := uc.GetSale(ctx, Access{}, created.ID)

	// Assert
	require.NoError(t, err)
	require.Len(t, sale.Products, 2)
	got := map[int64]int{}
	for _, item := range sale.Products {
		got[item.ProductID] = item.Quantity
		assert.Equal(t, 0, item.QuantityPaid)
		require.NotNil(t, item.Product)
	}
	assert.Equal(t, map[int64]int{a.ID: 2, b.ID: 4}, got)
	assert.Equal(t, 8, store.stockOf(a.ID))
	assert.Equal(t, 6, store.stockOf(b.ID))
}

func TestSaleUseCase_CreateSale_InsufficientStock(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("caio")
	product := store.seedProduct("Caneca", 2, 25, 10)

	// Act
	_, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: product.ID, Quantity: 5}))

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 2, store.stockOf(product.ID))
	assert.Equal(t, 0, store.saleCount())
	assert.Equal(t, 0, store.itemCount())
}

func TestSaleUseCase_CreateSale_RestoresEarlierStockOnLaterFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("duda")
	plenty := store.seedProduct("P1", 10, 5, 2)
	scarce := store.seedProduct("P2", 1, 5, 2)

	// Act
	_, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: plenty.ID, Quantity: 4},
		SaleProductRequest{ProductID: scarce.ID, Quantity: 3},
	))

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 10, store.stockOf(plenty.ID), "earlier decrement must be restored")
	assert.Equal(t, 1, store.stockOf(scarce.ID))
	assert.Equal(t, 0, store.saleCount())
	assert.Equal(t, 0, store.itemCount())
}

func TestSaleUseCase_CreateSale_LineInsertFailureRemovesHeader(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("enzo")
	product := store.seedProduct("Caneca", 10, 25, 10)
	store.failCreateSaleProducts = NewStoreError(500, "Failed to create sale products", errors.New("fk violation"))

	// Act
	_, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: product.ID, Quantity: 1}))

	// Assert
	require.Error(t, err)
	assert.Equal(t, "Failed to create sale products", err.(*AppError).Message)
	assert.Equal(t, 1, store.deleteSaleCalls)
	assert.Equal(t, 0, store.saleCount())
	assert.Equal(t, 10, store.stockOf(product.ID))
}

func TestSaleUseCase_CreateSale_CompensationFailureKeepsOriginalError(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("fabi")
	product := store.seedProduct("Caneca", 10, 25, 10)
	insertErr := errors.New("insert failed")
	store.failCreateSaleProducts = insertErr
	store.failDeleteSale = errors.New("delete failed")

	// Act
	_, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: product.ID, Quantity: 1}))

	// Assert
	assert.ErrorIs(t, err, insertErr)
	assert.Equal(t, 1, store.deleteSaleCalls)
}

func TestSaleUseCase_CreateSale_Validation(t *testing.T) {
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("gabi")
	product := store.seedProduct("Caneca", 10, 25, 10)

	t.Run("unknown client", func(t *testing.T) {
		_, err := uc.CreateSale(ctx, Access{}, saleRequest(9999,
			SaleProductRequest{ProductID: product.ID, Quantity: 1}))

		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, 0, store.saleCount())
	})

	t.Run("duplicate product", func(t *testing.T) {
		_, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
			SaleProductRequest{ProductID: product.ID, Quantity: 1},
			SaleProductRequest{ProductID: product.ID, Quantity: 2}))

		assert.True(t, errors.Is(err, ErrValidation))
		assert.Equal(t, 10, store.stockOf(product.ID))
	})

	t.Run("unknown product rolls back", func(t *testing.T) {
		_, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
			SaleProductRequest{ProductID: 9999, Quantity: 1}))

		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, 0, store.saleCount())
		assert.Equal(t, 0, store.itemCount())
	})
}

func TestSaleUseCase_UpdateProductPayment(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("hugo")
	product := store.seedProduct("Caneca", 10, 25, 10)
	sale, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: product.ID, Quantity: 3}))
	require.NoError(t, err)

	t.Run("within bounds", func(t *testing.T) {
		item, err := uc.UpdateProductPayment(ctx, Access{}, sale.ID, product.ID, 2)

		require.NoError(t, err)
		assert.Equal(t, 2, item.QuantityPaid)
		assert.Equal(t, 7, store.stockOf(product.ID), "payment does not touch stock")
	})

	t.Run("above quantity", func(t *testing.T) {
		_, err := uc.UpdateProductPayment(ctx, Access{}, sale.ID, product.ID, 5)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPayment))
		assert.Contains(t, err.Error(), "between 0 and 3")

		item, err := store.GetSaleProduct(ctx, Access{}, sale.ID, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, item.QuantityPaid)
	})

	t.Run("unknown line item", func(t *testing.T) {
		_, err := uc.UpdateProductPayment(ctx, Access{}, sale.ID, 9999, 1)

		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestSaleUseCase_RemoveProductFromSale(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("iris")
	a := store.seedProduct("A", 10, 5, 2)
	b := store.seedProduct("B", 10, 5, 2)
	sale, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: a.ID, Quantity: 5},
		SaleProductRequest{ProductID: b.ID, Quantity: 1},
	))
	require.NoError(t, err)
	_, err = uc.UpdateProductPayment(ctx, Access{}, sale.ID, a.ID, 4)
	require.NoError(t, err)

	t.Run("partial removal clamps payment", func(t *testing.T) {
		updated, err := uc.RemoveProductFromSale(ctx, Access{}, sale.ID, a.ID, 3)

		require.NoError(t, err)
		item, err := store.GetSaleProduct(ctx, Access{}, sale.ID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, item.Quantity)
		assert.Equal(t, 2, item.QuantityPaid)
		assert.Len(t, updated.Products, 2)
		assert.Equal(t, 5, store.stockOf(a.ID), "removal does not restore stock")
	})

	t.Run("full removal deletes the line", func(t *testing.T) {
		updated, err := uc.RemoveProductFromSale(ctx, Access{}, sale.ID, b.ID, 1)

		require.NoError(t, err)
		require.Len(t, updated.Products, 1)
		assert.Equal(t, a.ID, updated.Products[0].ProductID)
	})

	t.Run("more than the line holds", func(t *testing.T) {
		_, err := uc.RemoveProductFromSale(ctx, Access{}, sale.ID, a.ID, 10)

		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestSaleUseCase_UpdateAndDeleteSale(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, uc := newSaleFixture()
	client := store.seedClient("joao")
	product := store.seedProduct("Caneca", 10, 25, 10)
	sale, err := uc.CreateSale(ctx, Access{}, saleRequest(client.ID,
		SaleProductRequest{ProductID: product.ID, Quantity: 2}))
	require.NoError(t, err)

	// Act
	paid := "paid"
	updated, err := uc.UpdateSale(ctx, Access{}, sale.ID, UpdateSaleRequest{PaymentStatus: &paid})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "paid", updated.PaymentStatus)
	assert.Len(t, updated.Products, 1)

	negative := decimal.NewFromInt(-5)
	_, err = uc.UpdateSale(ctx, Access{}, sale.ID, UpdateSaleRequest{Total: &negative})
	assert.True(t, errors.Is(err, ErrValidation))

	require.NoError(t, uc.DeleteSale(ctx, Access{}, sale.ID))
	_, err = uc.GetSale(ctx, Access{}, sale.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, store.itemCount())
}

func TestSaleUseCase_ListSalesNeverNil(t *testing.T) {
	_, uc := newSaleFixture()

	sales, err := uc.ListSales(context.Background(), Access{})

	require.NoError(t, err)
	assert.NotNil(t, sales)
	assert.Empty(t, sales)
}

func TestClientUseCase(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, sales := newSaleFixture()
	uc := NewClientUseCase(store)
	access := Access{UserID: "user-9"}

	// Act
	client, err := uc.CreateClient(ctx, access, CreateClientRequest{Name: "Lia", Email: "lia@example.com"})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, client.UserID)
	assert.Equal(t, "user-9", *client.UserID)

	product := store.seedProduct("Caneca", 10, 25, 10)
	_, err = sales.CreateSale(ctx, access, saleRequest(client.ID, SaleProductRequest{ProductID: product.ID, Quantity: 1}))
	require.NoError(t, err)

	err = uc.DeleteClient(ctx, access, client.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflictReferenced))
	appErr, _ := AsAppError(err)
	assert.Equal(t, 409, appErr.Status)
}

func TestProductUseCase_Validation(t *testing.T) {
	ctx := context.Background()
	uc := NewProductUseCase(newMemStore())

	_, err := uc.CreateProduct(ctx, Access{}, CreateProductRequest{Name: "X", Stock: -1})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = uc.CreateProduct(ctx, Access{}, CreateProductRequest{Name: "X", Price: decimal.NewFromInt(-1)})
	assert.True(t, errors.Is(err, ErrValidation))

	product, err := uc.CreateProduct(ctx, Access{}, CreateProductRequest{Name: "X", Stock: 3, Price: decimal.NewFromInt(9)})
	require.NoError(t, err)
	assert.Nil(t, product.UserID)

	stock := -2
	_, err = uc.UpdateProduct(ctx, Access{}, product.ID, UpdateProductRequest{Stock: &stock})
	assert.True(t, errors.Is(err, ErrValidation))

	products, err := uc.ListProducts(ctx, Access{})
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestSaleUseCase_DeleteMissing(t *testing.T) {
	ctx := context.Background()
	store, uc := newSaleFixture()

	err := uc.DeleteSale(ctx, Access{}, 404)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = store.DeleteSaleProduct(ctx, Access{}, 404, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}
