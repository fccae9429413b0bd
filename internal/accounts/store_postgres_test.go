package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/postgres"
	"github.com/ariefcatur/go-shop-saga/internal/testutil"
	"github.com/google/uuid"
)

func TestPostgresStore(t *testing.T) {
	pool := testutil.NewTestPool(t, postgres.SchemaAccounts)
	testutil.Truncate(t, pool, "users")
	s := &PostgresStore{DB: pool}
	ctx := context.Background()

	u := &User{
		ID: uuid.NewString(), Email: "ana@example.com", PasswordHash: []byte("$2a$04$hash"),
		FirstName: "Ana", LastName: "Rojas", Role: auth.RoleCliente, CreatedAt: t0,
	}
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := *u
	dup.ID = uuid.NewString()
	if err := s.Create(ctx, &dup); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := s.ByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if got.ID != u.ID || got.Role != auth.RoleCliente || string(got.PasswordHash) != "$2a$04$hash" || !got.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := s.ByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
