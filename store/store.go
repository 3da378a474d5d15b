package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	models "shopping-cart/model"
)

//go:embed migrations.sql
var migrationSQL string

var (
	// ErrProductNotFound is returned when the catalog has no row for an id.
	ErrProductNotFound = errors.New("product not found")
	// ErrEmptyOrder is returned by CreateOrder when there are no lines.
	ErrEmptyOrder = errors.New("order has no items")
)

// PostgresStore is a Store backed by Postgres.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// CreateProduct inserts a product and returns its id.
func (s *PostgresStore) CreateProduct(ctx context.Context, p NewProduct) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO products (title, price, thumbnail, stock) VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Title, p.Price, p.Thumbnail, p.Stock,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.CatalogItem, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, title, price, thumbnail, stock FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []models.CatalogItem{}
	for rows.Next() {
		var p models.CatalogItem
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Thumbnail, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct returns the catalog record the cart snapshots on add.
func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (models.CatalogItem, error) {
	var p models.CatalogItem
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, price, thumbnail, stock FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Price, &p.Thumbnail, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CatalogItem{}, ErrProductNotFound
	}
	if err != nil {
		return models.CatalogItem{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// CreateOrder turns cart lines into an order. Live stock is checked and
// decremented in the same transaction; the cart's stock snapshot is not
// trusted here.
func (s *PostgresStore) CreateOrder(ctx context.Context, sessionID string, lines []models.LineItem) (models.Order, error) {
	if len(lines) == 0 {
		return models.Order{}, ErrEmptyOrder
	}

	// lock product rows in id order to avoid deadlocks between checkouts
	sorted := make([]models.LineItem, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	total := decimal.Zero
	for _, l := range sorted {
		var stock int
		err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, l.ID).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Order{}, fmt.Errorf("product %d: %w", l.ID, ErrProductNotFound)
		}
		if err != nil {
			return models.Order{}, err
		}
		if stock < l.Qty {
			return models.Order{}, fmt.Errorf("product %d has %d, want %d: %w", l.ID, stock, l.Qty, ErrInsufficientStock)
		}
		total = total.Add(l.Subtotal())
	}

	order := models.Order{SessionID: sessionID, Total: total}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (session_id, total) VALUES ($1, $2) RETURNING id, created_at`,
		sessionID, total,
	).Scan(&order.ID, &order.CreatedAt); err != nil {
		return models.Order{}, fmt.Errorf("insert order: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return models.Order{}, err
	}
	defer itemStmt.Close()

	for _, l := range sorted {
		if _, err := itemStmt.ExecContext(ctx, order.ID, l.ID, l.Qty, l.Price); err != nil {
			return models.Order{}, fmt.Errorf("insert order item %d: %w", l.ID, err)
		}
		order.Items = append(order.Items, models.OrderItem{ProductID: l.ID, Qty: l.Qty, Price: l.Price})
	}

	stockStmt, err := tx.PrepareContext(ctx, `UPDATE products SET stock = stock - $1 WHERE id = $2`)
	if err != nil {
		return models.Order{}, err
	}
	defer stockStmt.Close()

	for _, l := range sorted {
		if _, err := stockStmt.ExecContext(ctx, l.Qty, l.ID); err != nil {
			return models.Order{}, fmt.Errorf("decrement stock %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Order{}, err
	}
	committed = true
	return order, nil
}
