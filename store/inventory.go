package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrInsufficientStock returned when requested qty exceeds available stock.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrNegativeStock is returned by UpdateStock for values below zero.
var ErrNegativeStock = errors.New("stock cannot be negative")

// UpdateStock sets the absolute stock for a product (admin operation).
// Carts that already hold the product keep their insertion-time snapshot.
func (s *PostgresStore) UpdateStock(ctx context.Context, productID int64, newStock int) error {
	if newStock < 0 {
		return ErrNegativeStock
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE products SET stock=$1 WHERE id=$2`, newStock, productID)
	if err != nil {
		return err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetStock returns current stock for a product.
func (s *PostgresStore) GetStock(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := s.DB.QueryRowContext(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}
