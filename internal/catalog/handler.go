package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	CodeInsufficientStock = "insufficient_stock"
	CodeInvalidQuantity   = "invalid_quantity"
	CodeInvalidProduct    = "invalid_product"
)

var (
	managers   = auth.NewRoleSet(auth.RoleAdmin, auth.RoleGestorInventario)
	restockers = auth.NewRoleSet(auth.RoleAdmin, auth.RoleGestorInventario, auth.RoleReponedor)
)

type Handler struct {
	Store    Store
	Verifier auth.TokenVerifier
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// ReduceResponse is the body of a successful stock reduction.
type ReduceResponse struct {
	Message        string `json:"message"`
	ProductID      string `json:"productId"`
	QuantityOnHand int    `json:"quantityOnHand"`
}

type productInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Categories  []string        `json:"categories"`
	ImageURL    string          `json:"imageUrl"`
}

func (in productInput) product(id string) *Product {
	return &Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Categories:  in.Categories,
		ImageURL:    in.ImageURL,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/search", h.search)
		r.Get("/category/{category}", h.byCategory)
		r.Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(h.Verifier))

			r.With(auth.RequireRoles(auth.AnyRole())).Put("/stock/reduce/{productId}", h.reduce)
			r.With(auth.RequireRoles(restockers)).Put("/stock/{id}", h.setStock)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRoles(managers))
				r.Post("/", h.create)
				r.Put("/{id}", h.update)
				r.Delete("/{id}", h.delete)
			})
		})
	})
}

func (h *Handler) reduce(w http.ResponseWriter, r *http.Request) {
	productID := httpx.URLParam(r, "productId")
	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || qty <= 0 {
		h.Metrics.StockReduction("invalid")
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidQuantity, "quantity must be a positive integer")
		return
	}

	remaining, err := h.Store.Reduce(r.Context(), productID, qty)
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientStock):
		h.Metrics.StockReduction("insufficient")
		httpx.WriteError(w, http.StatusBadRequest, CodeInsufficientStock, "insufficient stock")
		return
	case errors.Is(err, ErrNotFound):
		h.Metrics.StockReduction("not_found")
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "product not found")
		return
	case errors.Is(err, ErrInvalidQuantity):
		h.Metrics.StockReduction("invalid")
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidQuantity, "quantity must be a positive integer")
		return
	default:
		h.internal(w, "stock_reduce_failed", err, zap.String("product_id", productID))
		return
	}

	h.Metrics.StockReduction("ok")
	h.log().Info("stock_reduced",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("quantity_on_hand", remaining),
	)
	httpx.WriteJSON(w, http.StatusOK, ReduceResponse{
		Message:        "stock reduced",
		ProductID:      productID,
		QuantityOnHand: remaining,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Store.List(r.Context())
	if err != nil {
		h.internal(w, "catalog_list_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ps)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_query", "q is required")
		return
	}
	ps, err := h.Store.Search(r.Context(), q)
	if err != nil {
		h.internal(w, "catalog_search_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ps)
}

func (h *Handler) byCategory(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Store.ByCategory(r.Context(), httpx.URLParam(r, "category"))
	if err != nil {
		h.internal(w, "catalog_category_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ps)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Get(r.Context(), httpx.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "product not found")
		return
	}
	if err != nil {
		h.internal(w, "catalog_get_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequestBody, "invalid request body")
		return
	}
	p := in.product("")
	if err := h.Store.Create(r.Context(), p); err != nil {
		h.writeStoreError(w, "catalog_create_failed", err)
		return
	}
	h.log().Info("product_created", zap.String("product_id", p.ID), zap.Int("stock", p.Stock))
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequestBody, "invalid request body")
		return
	}
	p := in.product(httpx.URLParam(r, "id"))
	if err := h.Store.Update(r.Context(), p); err != nil {
		h.writeStoreError(w, "catalog_update_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := httpx.URLParam(r, "id")
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, "catalog_delete_failed", err)
		return
	}
	h.log().Info("product_deleted", zap.String("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	stock, err := strconv.Atoi(r.URL.Query().Get("stock"))
	if err != nil || stock < 0 {
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidQuantity, "stock must be a non-negative integer")
		return
	}
	p, err := h.Store.SetStock(r.Context(), httpx.URLParam(r, "id"), stock)
	if err != nil {
		h.writeStoreError(w, "catalog_set_stock_failed", err)
		return
	}
	h.log().Info("stock_set", zap.String("product_id", p.ID), zap.Int("stock", stock))
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "product not found")
	case errors.Is(err, ErrInvalidProduct):
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidProduct, err.Error())
	default:
		h.internal(w, event, err)
	}
}

func (h *Handler) internal(w http.ResponseWriter, event string, err error, fields ...zap.Field) {
	h.log().Error(event, append(fields, zap.Error(err))...)
	httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "internal error")
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
