package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const defaultStockMaxRetries = 5

// StockLedger é o único ponto que altera products.stock.
// Cada escrita usa lock otimista sobre o valor lido; se outro escritor
// alterou o estoque no meio tempo, relê e tenta de novo.
type StockLedger struct {
	products   ProductRepository
	maxRetries int

	retryCounter    metric.Int64Counter
	conflictCounter metric.Int64Counter
}

// NewStockLedger cria uma nova instância de StockLedger
func NewStockLedger(products ProductRepository, maxRetries int) *StockLedger {
	if maxRetries <= 0 {
		maxRetries = defaultStockMaxRetries
	}

	meter := otel.Meter("sales-service")
	retryCounter, _ := meter.Int64Counter("stock_optimistic_lock_retries",
		metric.WithDescription("Stock writes retried after a concurrent change"))
	conflictCounter, _ := meter.Int64Counter("stock_optimistic_lock_conflicts",
		metric.WithDescription("Stock writes abandoned after exhausting retries"))

	return &StockLedger{
		products:        products,
		maxRetries:      maxRetries,
		retryCounter:    retryCounter,
		conflictCounter: conflictCounter,
	}
}

// DecreaseStock retira quantity unidades; nunca deixa o estoque negativo
func (l *StockLedger) DecreaseStock(ctx context.Context, access Access, productID int64, quantity int) (*Product, error) {
	return l.apply(ctx, access, productID, "decrease", func(p *Product) (int, error) {
		return p.StockAfterDecrease(quantity)
	})
}

// IncreaseStock devolve quantity unidades ao estoque
func (l *StockLedger) IncreaseStock(ctx context.Context, access Access, productID int64, quantity int) (*Product, error) {
	return l.apply(ctx, access, productID, "increase", func(p *Product) (int, error) {
		return p.StockAfterIncrease(quantity)
	})
}

func (l *StockLedger) apply(ctx context.Context, access Access, productID int64, op string, next func(p *Product) (int, error)) (*Product, error) {
	attrs := metric.WithAttributes(attribute.String("operation", op))

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		product, err := l.products.GetProduct(ctx, access, productID)
		if err != nil {
			return nil, err
		}

		// Regra de negócio verificada a cada leitura, não só na primeira
		newStock, err := next(product)
		if err != nil {
			return nil, err
		}

		ok, err := l.products.CompareAndSetStock(ctx, access, productID, product.Stock, newStock)
		if err != nil {
			return nil, err
		}
		if ok {
			product.Stock = newStock
			return product, nil
		}

		l.retryCounter.Add(ctx, 1, attrs)
		zap.S().Infof("🔁 [STOCK %s] version conflict | ProductID=%d | attempt %d/%d",
			op, productID, attempt, l.maxRetries)
	}

	l.conflictCounter.Add(ctx, 1, attrs)
	return nil, &AppError{
		Kind:    ErrStockConflict,
		Status:  ErrStockConflict.Status,
		Message: "Product stock changed concurrently, please retry",
		Err:     fmt.Errorf("max retries exceeded updating stock of product %d", productID),
	}
}
