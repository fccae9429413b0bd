package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO users(id, email, password_hash, first_name, last_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, string(u.PasswordHash), u.FirstName, u.LastName, string(u.Role), u.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("accounts: insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ByEmail(ctx context.Context, email string) (*User, error) {
	var (
		u          User
		hash, role string
	)
	err := s.DB.QueryRow(ctx, `
		SELECT id::text, email, password_hash, first_name, last_name, role, created_at
		FROM users WHERE email=$1`, email,
	).Scan(&u.ID, &u.Email, &hash, &u.FirstName, &u.LastName, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	r, ok := auth.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("accounts: user %s has unknown role %q", u.ID, role)
	}
	u.PasswordHash = []byte(hash)
	u.Role = r
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
