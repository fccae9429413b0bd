package reconcile

import (
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	CodeInvalidLimit = "invalid_limit"

	defaultListLimit = 100
	maxListLimit     = 1000
)

// Handler exposes recorded leaks to operators on the reconciler's internal port.
type Handler struct {
	Store Store
	Log   *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/leaks", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			httpx.WriteError(w, http.StatusBadRequest, CodeInvalidLimit, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	leaks, err := h.Store.List(r.Context(), limit)
	if err != nil {
		h.log().Error("leaks_list_failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, leaks)
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
