package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopping-cart/cart"
	models "shopping-cart/model"
	"shopping-cart/session"
	"shopping-cart/store"
)

// ErrCartEmpty is returned by Checkout when there is nothing to order.
var ErrCartEmpty = cart.ErrEmpty

// ErrInvalidInput wraps caller mistakes the handler reports as 400.
var ErrInvalidInput = errors.New("invalid input")

type Service struct {
	store    store.Store
	sessions *session.Registry
	logger   *zap.Logger
}

func NewService(s store.Store, sessions *session.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, sessions: sessions, logger: logger}
}

func (s *Service) OpenSession() string {
	return s.sessions.Open()
}

func (s *Service) EndSession(sessionID string) error {
	if !s.sessions.End(sessionID) {
		return session.ErrSessionNotFound
	}
	return nil
}

type CreateProductInput struct {
	Title     string
	Price     decimal.Decimal
	Thumbnail string
	Stock     int
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (int64, error) {
	if in.Title == "" {
		return 0, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return 0, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if in.Stock < 0 {
		return 0, fmt.Errorf("%w: stock must be >= 0", ErrInvalidInput)
	}
	return s.store.CreateProduct(ctx, store.NewProduct{
		Title:     in.Title,
		Price:     in.Price,
		Thumbnail: in.Thumbnail,
		Stock:     in.Stock,
	})
}

func (s *Service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProductDTO(r))
	}
	return out, nil
}

func (s *Service) UpdateStock(ctx context.Context, productID int64, newStock int) error {
	if newStock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidInput)
	}
	return s.store.UpdateStock(ctx, productID, newStock)
}

// GetStock reports live catalog stock, which may differ from the snapshot
// a cart line took at insertion.
func (s *Service) GetStock(ctx context.Context, productID int64) (int, error) {
	if productID <= 0 {
		return 0, fmt.Errorf("%w: product_id must be positive", ErrInvalidInput)
	}
	return s.store.GetStock(ctx, productID)
}

func (s *Service) GetCart(sessionID string) (CartDTO, error) {
	c, err := s.sessions.Cart(sessionID)
	if err != nil {
		return CartDTO{}, err
	}
	return newCartDTO(c.Snapshot()), nil
}

func (s *Service) QtyOf(sessionID string, productID int64) (int, error) {
	c, err := s.sessions.Cart(sessionID)
	if err != nil {
		return 0, err
	}
	return c.QtyOf(productID), nil
}

// AddToCart looks the product up in the catalog and adds one unit. The
// catalog record is snapshotted into the cart line on first add.
func (s *Service) AddToCart(ctx context.Context, sessionID string, productID int64) (CartResult, error) {
	c, err := s.sessions.Cart(sessionID)
	if err != nil {
		return CartResult{}, err
	}
	item, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return CartResult{}, err
	}
	res := c.AddOne(item)
	s.logResult("add", sessionID, productID, res)
	return CartResult{Result: res, Cart: newCartDTO(c.Snapshot())}, nil
}

func (s *Service) Increment(sessionID string, productID int64) (CartResult, error) {
	return s.apply("inc", sessionID, productID, (*cart.Facade).Inc)
}

func (s *Service) Decrement(sessionID string, productID int64) (CartResult, error) {
	return s.apply("dec", sessionID, productID, (*cart.Facade).Dec)
}

func (s *Service) RemoveFromCart(sessionID string, productID int64) (CartResult, error) {
	return s.apply("remove", sessionID, productID, (*cart.Facade).Remove)
}

func (s *Service) ClearCart(sessionID string) (CartDTO, error) {
	c, err := s.sessions.Cart(sessionID)
	if err != nil {
		return CartDTO{}, err
	}
	c.Clear()
	return newCartDTO(c.Snapshot()), nil
}

// Checkout persists the current cart as an order and takes the ordered
// lines out of the cart. A second checkout of the same session waits for the
// first and then finds the cart empty. The cart is left untouched when the
// order cannot be created.
func (s *Service) Checkout(ctx context.Context, sessionID string) (OrderDTO, error) {
	c, err := s.sessions.Cart(sessionID)
	if err != nil {
		return OrderDTO{}, err
	}

	var order models.Order
	err = c.Checkout(func(items []models.LineItem) error {
		var err error
		order, err = s.store.CreateOrder(ctx, sessionID, items)
		return err
	})
	if err != nil {
		return OrderDTO{}, err
	}

	s.logger.Info("checkout complete",
		zap.String("session_id", sessionID),
		zap.Int64("order_id", order.ID),
		zap.Stringer("total", order.Total),
	)

	od := OrderDTO{
		ID:        order.ID,
		SessionID: order.SessionID,
		Total:     order.Total,
		CreatedAt: order.CreatedAt,
		Items:     make([]OrderItemDTO, 0, len(order.Items)),
	}
	if od.CreatedAt.IsZero() {
		od.CreatedAt = time.Now()
	}
	for _, it := range order.Items {
		od.Items = append(od.Items, OrderItemDTO(it))
	}
	return od, nil
}

func (s *Service) apply(op, sessionID string, productID int64, fn func(*cart.Facade, int64) cart.Result) (CartResult, error) {
	c, err := s.sessions.Cart(sessionID)
	if err != nil {
		return CartResult{}, err
	}
	res := fn(c, productID)
	s.logResult(op, sessionID, productID, res)
	return CartResult{Result: res, Cart: newCartDTO(c.Snapshot())}, nil
}

func (s *Service) logResult(op, sessionID string, productID int64, res cart.Result) {
	if res == cart.OutOfStock {
		s.logger.Info("stock limit reached",
			zap.String("op", op),
			zap.String("session_id", sessionID),
			zap.Int64("product_id", productID),
		)
	}
}

// DTOs
type ProductDTO struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Stock     int             `json:"stock"`
}

type LineDTO struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Stock     int             `json:"stock"`
	Qty       int             `json:"qty"`
}

type CartDTO struct {
	Items       []LineDTO       `json:"items"`
	TotalUnique int             `json:"total_unique"`
	TotalQty    int             `json:"total_qty"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// CartResult carries the outcome tag of a mutation with the cart it left.
type CartResult struct {
	Result cart.Result `json:"result"`
	Cart   CartDTO     `json:"cart"`
}

type OrderItemDTO struct {
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type OrderDTO struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Items     []OrderItemDTO  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

func newCartDTO(s cart.Snapshot) CartDTO {
	out := CartDTO{
		Items:       make([]LineDTO, 0, len(s.Items)),
		TotalUnique: s.TotalUnique,
		TotalQty:    s.TotalQty,
		TotalPrice:  s.TotalPrice,
	}
	for _, l := range s.Items {
		out.Items = append(out.Items, LineDTO(l))
	}
	return out
}
