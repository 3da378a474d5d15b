package store

import (
	"context"

	"github.com/shopspring/decimal"

	models "shopping-cart/model"
)

// Store is the catalog and order persistence used around the cart.
// Cart contents themselves are never stored.
//
// POST /products         - CreateProduct
// GET  /products/list    - ListProducts
// POST /products/stock   - UpdateStock
// POST /cart/add         - GetProduct (catalog lookup before AddOne)
// POST /checkout/order   - CreateOrder
type Store interface {
	CreateProduct(ctx context.Context, p NewProduct) (int64, error)
	ListProducts(ctx context.Context) ([]models.CatalogItem, error)
	GetProduct(ctx context.Context, id int64) (models.CatalogItem, error)

	UpdateStock(ctx context.Context, productID int64, newStock int) error
	GetStock(ctx context.Context, productID int64) (int, error)

	CreateOrder(ctx context.Context, sessionID string, lines []models.LineItem) (models.Order, error)

	Close() error
}

// NewProduct is the input for CreateProduct.
type NewProduct struct {
	Title     string
	Price     decimal.Decimal
	Thumbnail string
	Stock     int
}
