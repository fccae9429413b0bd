package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
)

var (
	ErrEmailTaken         = errors.New("accounts: email already registered")
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	ErrUserNotFound       = errors.New("accounts: user not found")
)

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Role         auth.Role
	CreatedAt    time.Time
}

// Store persists users. Emails are stored lowercased; Create returns
// ErrEmailTaken when the email is already present.
type Store interface {
	Create(ctx context.Context, u *User) error
	ByEmail(ctx context.Context, email string) (*User, error)
}
