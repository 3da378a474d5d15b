package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopping-cart/service"
	"shopping-cart/session"
	"shopping-cart/store"
)

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc      service.ServiceInterface
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:      s,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Sessions
	r.HandleFunc("/sessions", h.OpenSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.EndSession).Methods("DELETE")

	// Products
	r.HandleFunc("/products", h.CreateProduct).Methods("POST")
	r.HandleFunc("/products/list", h.ListProducts).Methods("GET")
	r.HandleFunc("/products/stock", h.UpdateStock).Methods("POST")
	r.HandleFunc("/products/stock", h.GetStock).Methods("GET")

	// Cart
	r.HandleFunc("/cart/list", h.ListCart).Methods("GET")
	r.HandleFunc("/cart/qty", h.QtyOf).Methods("GET")
	r.HandleFunc("/cart/add", h.AddToCart).Methods("POST")
	r.HandleFunc("/cart/inc", h.Increment).Methods("POST")
	r.HandleFunc("/cart/dec", h.Decrement).Methods("POST")
	r.HandleFunc("/cart/remove", h.RemoveFromCart).Methods("POST")
	r.HandleFunc("/cart/clear", h.ClearCart).Methods("POST")

	// Checkout
	r.HandleFunc("/checkout/order", h.Checkout).Methods("POST")
}

// --- request / response shapes ---
type createProductReq struct {
	Title     string          `json:"title" validate:"required,max=200"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail,omitempty" validate:"omitempty,max=500"`
	Stock     int             `json:"stock" validate:"gte=0"`
}

type updateStockReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	NewStock  int   `json:"new_stock" validate:"gte=0"`
}

type cartItemReq struct {
	SessionID string `json:"session_id" validate:"required"`
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
}

type sessionReq struct {
	SessionID string `json:"session_id" validate:"required"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// readJSON decodes a size-limited body into v and validates it.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeSvcErr maps service and store errors to HTTP codes.
func (h *Handler) writeSvcErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, store.ErrProductNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, store.ErrNegativeStock),
		errors.Is(err, service.ErrCartEmpty):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInsufficientStock):
		writeErr(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// --- Handler ---

// OpenSession handles POST /sessions
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": h.svc.OpenSession()})
}

// EndSession handles DELETE /sessions/{id}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.EndSession(mux.Vars(r)["id"]); err != nil {
		h.writeSvcErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateProduct handles POST /products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if !h.readJSON(w, r, &req) {
		return
	}
	id, err := h.svc.CreateProduct(r.Context(), service.CreateProductInput{
		Title:     req.Title,
		Price:     req.Price,
		Thumbnail: req.Thumbnail,
		Stock:     req.Stock,
	})
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// ListProducts handles GET /products/list
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// UpdateStock handles POST /products/stock
// body: { "product_id": 1, "new_stock": 10 }
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req updateStockReq
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.svc.UpdateStock(r.Context(), req.ProductID, req.NewStock); err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStock handles GET /products/stock?product_id=...
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "product_id must be an integer")
		return
	}
	n, err := h.svc.GetStock(r.Context(), productID)
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product_id": productID, "stock": n})
}

// ListCart handles GET /cart/list?session_id=...
func (h *Handler) ListCart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeErr(w, http.StatusBadRequest, "session_id required")
		return
	}
	c, err := h.svc.GetCart(sessionID)
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// QtyOf handles GET /cart/qty?session_id=...&product_id=...
func (h *Handler) QtyOf(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		writeErr(w, http.StatusBadRequest, "session_id required")
		return
	}
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "product_id must be an integer")
		return
	}
	qty, err := h.svc.QtyOf(sessionID, productID)
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product_id": productID, "qty": qty})
}

// AddToCart handles POST /cart/add
// body: { "session_id": "...", "product_id": 1 }
// A full line answers 200 with "result": "out_of_stock".
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if !h.readJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AddToCart(r.Context(), req.SessionID, req.ProductID)
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Increment handles POST /cart/inc
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Increment)
}

// Decrement handles POST /cart/dec
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Decrement)
}

// RemoveFromCart handles POST /cart/remove
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.RemoveFromCart)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(string, int64) (service.CartResult, error)) {
	var req cartItemReq
	if !h.readJSON(w, r, &req) {
		return
	}
	res, err := fn(req.SessionID, req.ProductID)
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ClearCart handles POST /cart/clear
// body: { "session_id": "..." }
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	var req sessionReq
	if !h.readJSON(w, r, &req) {
		return
	}
	c, err := h.svc.ClearCart(req.SessionID)
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Checkout handles POST /checkout/order
// body: { "session_id": "..." }
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req sessionReq
	if !h.readJSON(w, r, &req) {
		return
	}
	ord, err := h.svc.Checkout(r.Context(), req.SessionID)
	if err != nil {
		h.writeSvcErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ord)
}
