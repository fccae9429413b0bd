package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema names match the files under schema/.
const (
	SchemaAccounts = "accounts"
	SchemaCatalog  = "catalog"
	SchemaOrders   = "orders"
)

// Migrate applies the idempotent schema for one service. Statements run
// without arguments, so pgx sends the whole file over the simple protocol.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	b, err := schemaFS.ReadFile("schema/" + schema + ".sql")
	if err != nil {
		return fmt.Errorf("postgres: unknown schema %q: %w", schema, err)
	}
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("postgres: apply %s schema: %w", schema, err)
	}
	return nil
}
