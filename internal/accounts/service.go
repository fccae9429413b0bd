package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	// bcrypt.GenerateFromPassword rejects anything longer.
	maxPasswordBytes = 72
)

type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token  string    `json:"token"`
	UserID string    `json:"userId"`
	Email  string    `json:"email"`
	Role   auth.Role `json:"role"`
}

// InputError is returned for register or login bodies that fail validation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string { return e.Field + " " + e.Reason }

type Service struct {
	Store  Store
	Issuer *auth.Issuer
	Clock  clock.Clock
	Log    *zap.Logger

	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

// Register creates a CLIENTE account and signs a token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return AuthResponse{}, err
	}
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return AuthResponse{}, &InputError{Field: "firstName", Reason: "is required"}
	case strings.TrimSpace(in.LastName) == "":
		return AuthResponse{}, &InputError{Field: "lastName", Reason: "is required"}
	case len(in.Password) < minPasswordLen:
		return AuthResponse{}, &InputError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	case len(in.Password) > maxPasswordBytes:
		return AuthResponse{}, &InputError{Field: "password", Reason: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)}
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("accounts: hash password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         auth.RoleCliente,
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Store.Create(ctx, u); err != nil {
		return AuthResponse{}, err
	}
	s.Log.Info("user_registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return s.issue(u)
}

// Login checks the password and signs a fresh token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil || in.Password == "" {
		return AuthResponse{}, ErrInvalidCredentials
	}
	u, err := s.Store.ByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return AuthResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(in.Password)); err != nil {
		s.Log.Info("login_rejected", zap.String("user_id", u.ID))
		return AuthResponse{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *Service) issue(u *User) (AuthResponse, error) {
	tok, _, err := s.Issuer.Issue(u.Email, u.ID, u.Role)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{Token: tok, UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &InputError{Field: "email", Reason: "must be a valid address"}
	}
	return email, nil
}
