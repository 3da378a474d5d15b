package service

import "context"

type ServiceInterface interface {
	OpenSession() string
	EndSession(sessionID string) error

	CreateProduct(ctx context.Context, in CreateProductInput) (int64, error)
	ListProducts(ctx context.Context) ([]ProductDTO, error)
	UpdateStock(ctx context.Context, productID int64, newStock int) error
	GetStock(ctx context.Context, productID int64) (int, error)

	GetCart(sessionID string) (CartDTO, error)
	QtyOf(sessionID string, productID int64) (int, error)
	AddToCart(ctx context.Context, sessionID string, productID int64) (CartResult, error)
	Increment(sessionID string, productID int64) (CartResult, error)
	Decrement(sessionID string, productID int64) (CartResult, error)
	RemoveFromCart(sessionID string, productID int64) (CartResult, error)
	ClearCart(sessionID string) (CartDTO, error)

	Checkout(ctx context.Context, sessionID string) (OrderDTO, error)
}
