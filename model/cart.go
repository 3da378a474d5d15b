package models

import "github.com/shopspring/decimal"

// CatalogItem is a product record as supplied by the catalog. The cart treats
// it as read-only input at the moment it is added.
type CatalogItem struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Stock     int             `json:"stock"`
}

// LineItem is a catalog item plus a cart-scoped quantity. Stock is the value
// captured when the line entered the cart; it is never refreshed.
type LineItem struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Stock     int             `json:"stock"`
	Qty       int             `json:"qty"`
}

// NewLineItem builds a line for item with the given quantity.
func NewLineItem(item CatalogItem, qty int) LineItem {
	return LineItem{
		ID:        item.ID,
		Title:     item.Title,
		Price:     item.Price,
		Thumbnail: item.Thumbnail,
		Stock:     item.Stock,
		Qty:       qty,
	}
}

// Subtotal returns Price * Qty.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}
