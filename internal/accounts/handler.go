package accounts

import (
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	CodeInvalidInput       = "invalid_input"
	CodeEmailTaken         = "email_taken"
	CodeInvalidCredentials = "invalid_credentials"
)

type Handler struct {
	Service  *Service
	Verifier auth.TokenVerifier
	Log      *zap.Logger
}

type meResponse struct {
	Subject   string    `json:"sub"`
	UserID    string    `json:"userId"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.With(auth.Authenticate(h.Verifier)).Get("/me", h.me)
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequestBody, "invalid request body")
		return
	}
	resp, err := h.Service.Register(r.Context(), in)
	var ierr *InputError
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, resp)
	case errors.As(err, &ierr):
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidInput, ierr.Error())
	case errors.Is(err, ErrEmailTaken):
		httpx.WriteError(w, http.StatusBadRequest, CodeEmailTaken, "email already registered")
	default:
		h.log().Error("register_failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "internal error")
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequestBody, "invalid request body")
		return
	}
	resp, err := h.Service.Login(r.Context(), in)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, resp)
	case errors.Is(err, ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	default:
		h.log().Error("login_failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "internal error")
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		Subject:   p.Subject,
		UserID:    p.UserID,
		Role:      p.Role,
		ExpiresAt: p.ExpiresAt,
	})
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
