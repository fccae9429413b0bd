package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"
)

const postgresImage = "postgres:16-alpine"

// NewTestPool returns a pool with the given schemas applied. It uses
// TEST_DATABASE_URL when set and otherwise starts a throwaway container.
// The test is skipped under -short or when Docker is unavailable.
func NewTestPool(t *testing.T, schemas ...string) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = startContainer(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, postgres.Options{DSN: dsn, MaxConns: 4, Log: zaptest.NewLogger(t)})
	if err != nil {
		t.Skipf("skipping Postgres integration test: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, s := range schemas {
		if err := postgres.Migrate(ctx, pool, s); err != nil {
			t.Fatalf("migrate %s: %v", s, err)
		}
	}
	return pool
}

// Truncate empties the named tables between subtests sharing one pool.
func Truncate(t *testing.T, pool *pgxpool.Pool, tables string) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE `+tables+` CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func startContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("skipping Postgres integration test: start container: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}
