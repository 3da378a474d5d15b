package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "shopping-cart/model"
	"shopping-cart/service"
	"shopping-cart/session"
	"shopping-cart/store"
)

// memStore is an in-memory catalog good enough to drive the HTTP layer.
type memStore struct {
	products map[int64]models.CatalogItem
	nextID   int64
	orders   []models.Order
}

func newMemStore(items ...models.CatalogItem) *memStore {
	m := &memStore{products: map[int64]models.CatalogItem{}, nextID: 100}
	for _, it := range items {
		m.products[it.ID] = it
	}
	return m
}

func (m *memStore) CreateProduct(_ context.Context, p store.NewProduct) (int64, error) {
	m.nextID++
	m.products[m.nextID] = models.CatalogItem{ID: m.nextID, Title: p.Title, Price: p.Price, Thumbnail: p.Thumbnail, Stock: p.Stock}
	return m.nextID, nil
}

func (m *memStore) ListProducts(context.Context) ([]models.CatalogItem, error) {
	out := []models.CatalogItem{}
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (models.CatalogItem, error) {
	p, ok := m.products[id]
	if !ok {
		return models.CatalogItem{}, store.ErrProductNotFound
	}
	return p, nil
}

func (m *memStore) UpdateStock(_ context.Context, id int64, n int) error {
	p, ok := m.products[id]
	if !ok {
		return store.ErrProductNotFound
	}
	p.Stock = n
	m.products[id] = p
	return nil
}

func (m *memStore) GetStock(_ context.Context, id int64) (int, error) {
	p, ok := m.products[id]
	if !ok {
		return 0, store.ErrProductNotFound
	}
	return p.Stock, nil
}

func (m *memStore) CreateOrder(_ context.Context, sessionID string, lines []models.LineItem) (models.Order, error) {
	o := models.Order{ID: int64(len(m.orders) + 1), SessionID: sessionID, Total: decimal.Zero, CreatedAt: time.Now()}
	for _, l := range lines {
		if m.products[l.ID].Stock < l.Qty {
			return models.Order{}, store.ErrInsufficientStock
		}
		o.Items = append(o.Items, models.OrderItem{ProductID: l.ID, Qty: l.Qty, Price: l.Price})
		o.Total = o.Total.Add(l.Subtotal())
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memStore) Close() error { return nil }

type harness struct {
	t      *testing.T
	router *mux.Router
	store  *memStore
}

func newHarness(t *testing.T, items ...models.CatalogItem) *harness {
	ms := newMemStore(items...)
	svc := service.NewService(ms, session.NewRegistry(), nil)
	r := mux.NewRouter()
	NewHandler(svc, nil).RegisterRoutes(r)
	return &harness{t: t, router: r, store: ms}
}

func (h *harness) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) openSession() string {
	h.t.Helper()
	rec := h.do("POST", "/sessions", nil)
	require.Equal(h.t, http.StatusCreated, rec.Code)
	var out map[string]string
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(h.t, out["session_id"])
	return out["session_id"]
}

type cartResultBody struct {
	Result string          `json:"result"`
	Cart   service.CartDTO `json:"cart"`
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) cartResultBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out cartResultBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func pen() models.CatalogItem {
	return models.CatalogItem{ID: 1, Title: "pen", Price: decimal.NewFromInt(10), Thumbnail: "pen.png", Stock: 2}
}

func TestAddUntilOutOfStock(t *testing.T) {
	h := newHarness(t, pen())
	sid := h.openSession()
	body := map[string]interface{}{"session_id": sid, "product_id": 1}

	assert.Equal(t, "ok", decodeResult(t, h.do("POST", "/cart/add", body)).Result)
	assert.Equal(t, "ok", decodeResult(t, h.do("POST", "/cart/inc", body)).Result)

	out := decodeResult(t, h.do("POST", "/cart/inc", body))
	assert.Equal(t, "out_of_stock", out.Result)
	assert.Equal(t, 2, out.Cart.TotalQty)
	assert.True(t, out.Cart.TotalPrice.Equal(decimal.NewFromInt(20)))

	rec := h.do("GET", "/cart/qty?session_id="+sid+"&product_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"product_id":1,"qty":2}`, rec.Body.String())
}

func TestDecAndRemove(t *testing.T) {
	h := newHarness(t, pen())
	sid := h.openSession()
	body := map[string]interface{}{"session_id": sid, "product_id": 1}

	h.do("POST", "/cart/add", body)
	out := decodeResult(t, h.do("POST", "/cart/dec", body))
	assert.Equal(t, "ok", out.Result)
	assert.Empty(t, out.Cart.Items)

	assert.Equal(t, "not_found", decodeResult(t, h.do("POST", "/cart/dec", body)).Result)
	assert.Equal(t, "not_found", decodeResult(t, h.do("POST", "/cart/remove", body)).Result)
}

func TestListAndClearCart(t *testing.T) {
	h := newHarness(t, pen(), models.CatalogItem{ID: 2, Title: "ink", Price: decimal.NewFromInt(20), Stock: 3})
	sid := h.openSession()
	h.do("POST", "/cart/add", map[string]interface{}{"session_id": sid, "product_id": 1})
	h.do("POST", "/cart/add", map[string]interface{}{"session_id": sid, "product_id": 2})

	rec := h.do("GET", "/cart/list?session_id="+sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c service.CartDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, 2, c.TotalUnique)
	assert.Equal(t, []int64{1, 2}, []int64{c.Items[0].ID, c.Items[1].ID})

	rec = h.do("POST", "/cart/clear", map[string]string{"session_id": sid})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalPrice.IsZero())
}

func TestCheckout(t *testing.T) {
	h := newHarness(t, pen())
	sid := h.openSession()

	rec := h.do("POST", "/checkout/order", map[string]string{"session_id": sid})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.do("POST", "/cart/add", map[string]interface{}{"session_id": sid, "product_id": 1})
	rec = h.do("POST", "/checkout/order", map[string]string{"session_id": sid})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var od service.OrderDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &od))
	assert.Equal(t, sid, od.SessionID)
	assert.True(t, od.Total.Equal(decimal.NewFromInt(10)))
	assert.Len(t, h.store.orders, 1)

	c := h.do("GET", "/cart/list?session_id="+sid, nil)
	assert.Contains(t, c.Body.String(), `"total_qty":0`)
}

func TestCheckoutInsufficientLiveStock(t *testing.T) {
	h := newHarness(t, pen())
	sid := h.openSession()
	h.do("POST", "/cart/add", map[string]interface{}{"session_id": sid, "product_id": 1})

	rec := h.do("POST", "/products/stock", map[string]interface{}{"product_id": 1, "new_stock": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do("GET", "/products/stock?product_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"product_id":1,"stock":0}`, rec.Body.String())

	rec = h.do("POST", "/checkout/order", map[string]string{"session_id": sid})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t, pen())
	sid := h.openSession()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		code   int
	}{
		{"unknown session", "POST", "/cart/add", map[string]interface{}{"session_id": "nope", "product_id": 1}, http.StatusNotFound},
		{"unknown product", "POST", "/cart/add", map[string]interface{}{"session_id": sid, "product_id": 9}, http.StatusNotFound},
		{"missing product id", "POST", "/cart/inc", map[string]interface{}{"session_id": sid}, http.StatusBadRequest},
		{"unknown field", "POST", "/cart/inc", map[string]interface{}{"session_id": sid, "product_id": 1, "qty": 3}, http.StatusBadRequest},
		{"missing session query", "GET", "/cart/list", nil, http.StatusBadRequest},
		{"bad product id query", "GET", "/cart/qty?session_id=" + sid + "&product_id=x", nil, http.StatusBadRequest},
		{"negative stock", "POST", "/products/stock", map[string]interface{}{"product_id": 1, "new_stock": -1}, http.StatusBadRequest},
		{"empty title", "POST", "/products", map[string]interface{}{"price": "1.00"}, http.StatusBadRequest},
		{"negative price", "POST", "/products", map[string]interface{}{"title": "x", "price": "-1"}, http.StatusBadRequest},
		{"stock of unknown product", "GET", "/products/stock?product_id=9", nil, http.StatusNotFound},
		{"end unknown session", "DELETE", "/sessions/nope", nil, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestProductsAndSessions(t *testing.T) {
	h := newHarness(t)

	rec := h.do("POST", "/products", map[string]interface{}{"title": "mug", "price": "4.50", "stock": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do("GET", "/products/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ps []service.ProductDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ps))
	require.Len(t, ps, 1)
	assert.Equal(t, "mug", ps[0].Title)
	assert.True(t, ps[0].Price.Equal(decimal.RequireFromString("4.5")))

	sid := h.openSession()
	rec = h.do("DELETE", "/sessions/"+sid, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do("GET", "/cart/list?session_id="+sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
