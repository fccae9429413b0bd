package orders

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"github.com/ariefcatur/go-shop-saga/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	CodeInvalidOrder          = "invalid_order"
	CodeReservationFailed     = "reservation_failed"
	CodePersistFailed         = "persist_failed"
	CodeInvalidStatus         = "invalid_status"
	CodeInvalidTransition     = "invalid_transition"
	CodeIdempotencyInProgress = "idempotency_in_progress"

	HeaderIdempotencyKey = "Idempotency-Key"
)

var (
	customers = auth.NewRoleSet(auth.RoleCliente)
	staff     = auth.NewRoleSet(auth.RoleAdmin, auth.RoleDespachador)
)

// IdempotencyStore guards POST /orders retries; redisx.Idempotency implements it.
type IdempotencyStore interface {
	Begin(ctx context.Context, userID, key string) (value string, claimed bool, err error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Release(ctx context.Context, userID, key string) error
}

type Handler struct {
	Coordinator *Coordinator
	Service     *Service
	Verifier    auth.TokenVerifier
	Idempotency IdempotencyStore // optional
	Log         *zap.Logger
}

type failedItem struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type reservationFailure struct {
	httpx.ErrorResponse
	AttemptID string        `json:"attemptId"`
	Item      failedItem    `json:"item"`
	Reserved  []Reservation `json:"reserved"`
}

type persistFailure struct {
	httpx.ErrorResponse
	AttemptID string        `json:"attemptId"`
	Reserved  []Reservation `json:"reserved"`
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(auth.Authenticate(h.Verifier))

		r.Post("/", h.create)
		r.With(auth.RequireRoles(customers)).Get("/mine", h.mine)
		r.With(auth.RequireRoles(staff)).Get("/all", h.all)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.With(auth.RequireRoles(staff)).Put("/{id}/status", h.updateStatus)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var in NewOrder
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequestBody, "invalid request body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	claimed := false
	if key != "" && h.Idempotency != nil {
		var done bool
		if claimed, done = h.claim(w, r, p, key); done {
			return
		}
	}

	out, err := h.Coordinator.CreateOrder(r.Context(), p.Token, in)
	if claimed {
		h.settle(r.Context(), p.UserID, key, out, err)
	}

	var (
		verr *ValidationError
		rerr *ReservationError
		perr *PersistError
	)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusCreated, out.Order)
	case errors.Is(err, ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "unauthorized")
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidOrder, verr.Error())
	case errors.As(err, &rerr):
		httpx.WriteJSON(w, http.StatusBadRequest, reservationFailure{
			ErrorResponse: httpx.ErrorResponse{Error: rerr.Error(), Code: CodeReservationFailed},
			AttemptID:     out.Attempt.ID,
			Item:          failedItem{Index: rerr.Index, ProductID: rerr.ProductID, Quantity: rerr.Quantity},
			Reserved:      out.Attempt.Reserved,
		})
	case errors.As(err, &perr):
		h.log().Error("order_persist_failed", zap.String("attempt_id", out.Attempt.ID), zap.Error(perr.Err))
		httpx.WriteJSON(w, http.StatusInternalServerError, persistFailure{
			ErrorResponse: httpx.ErrorResponse{Error: "order could not be stored", Code: CodePersistFailed},
			AttemptID:     out.Attempt.ID,
			Reserved:      out.Attempt.Reserved,
		})
	default:
		h.log().Error("order_create_failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "internal error")
	}
}

// claim takes the idempotency key. done means the response was already
// written: an in-flight duplicate or a replay of a finished request.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, p auth.Principal, key string) (claimed, done bool) {
	ctx := r.Context()
	value, claimed, err := h.Idempotency.Begin(ctx, p.UserID, key)
	if err != nil {
		h.log().Warn("idempotency_unavailable", zap.Error(err))
		return false, false
	}
	if claimed {
		return true, false
	}
	if value == redisx.IdemPending {
		httpx.WriteError(w, http.StatusConflict, CodeIdempotencyInProgress, "a request with this idempotency key is still in progress")
		return false, true
	}
	o, err := h.Service.Get(ctx, value)
	if err != nil {
		h.log().Warn("idempotency_replay_lookup_failed", zap.String("order_id", value), zap.Error(err))
		httpx.WriteError(w, http.StatusConflict, httpx.CodeConflict, "idempotency key already used")
		return false, true
	}
	httpx.WriteJSON(w, http.StatusOK, o)
	return false, true
}

// settle stores the order id for replays, or frees the key so the client
// can retry a failed attempt.
func (h *Handler) settle(ctx context.Context, userID, key string, out *Outcome, err error) {
	ctx = context.WithoutCancel(ctx)
	if err == nil {
		if err := h.Idempotency.Complete(ctx, userID, key, out.Order.ID); err != nil {
			h.log().Warn("idempotency_complete_failed", zap.String("order_id", out.Order.ID), zap.Error(err))
		}
		return
	}
	if err := h.Idempotency.Release(ctx, userID, key); err != nil {
		h.log().Warn("idempotency_release_failed", zap.Error(err))
	}
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	list, err := h.Service.ListOwned(r.Context(), p.UserID)
	if err != nil {
		h.internal(w, "orders_list_owned_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) all(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListAll(r.Context())
	if err != nil {
		h.internal(w, "orders_list_all_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	o, err := h.Service.Get(r.Context(), httpx.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) || (err == nil && !canSee(p, o.OwnerID)) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "order not found")
		return
	}
	if err != nil {
		h.internal(w, "orders_get_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	v, err := h.Service.Status(r.Context(), httpx.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) || (err == nil && !canSee(p, v.OwnerID)) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "order not found")
		return
	}
	if err != nil {
		h.internal(w, "orders_status_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	o, err := h.Service.UpdateStatus(r.Context(), httpx.URLParam(r, "id"), r.URL.Query().Get("status"), p.Subject)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, o)
	case errors.Is(err, ErrInvalidStatus):
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidStatus, "status must be one of PENDING, CONFIRMED, SHIPPED, DELIVERED, CANCELLED")
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "order not found")
	case errors.Is(err, ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, CodeInvalidTransition, "status transition not allowed")
	default:
		h.internal(w, "orders_update_status_failed", err)
	}
}

// canSee hides other users' orders from everyone but staff.
func canSee(p auth.Principal, ownerID string) bool {
	return p.UserID == ownerID || staff.Has(p.Role)
}

func (h *Handler) internal(w http.ResponseWriter, event string, err error) {
	h.log().Error(event, zap.Error(err))
	httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "internal error")
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
