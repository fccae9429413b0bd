package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PostgresStore struct{ DB *pgxpool.Pool }

// Reduce locks only the product row (FOR UPDATE), so concurrent reductions of
// the same product queue behind each other while other products proceed.
func (s *PostgresStore) Reduce(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: lock product: %w", err)
	}
	if quantity > stock {
		return 0, ErrInsufficientStock
	}

	remaining := stock - quantity
	if _, err := tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, productID, remaining); err != nil {
		return 0, fmt.Errorf("catalog: reduce stock: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("catalog: commit reduce: %w", err)
	}
	return remaining, nil
}

const productColumns = `id, name, description, price::text, stock, categories, image_url, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, price, stock, categories, image_url)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price.String(), p.Stock, p.Categories, p.ImageURL,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("catalog: insert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Product, error) {
	return s.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
}

func (s *PostgresStore) Search(ctx context.Context, q string) ([]Product, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(q)) + "%"
	return s.query(ctx, `SELECT `+productColumns+` FROM products
		WHERE name ILIKE $1 OR description ILIKE $1
		ORDER BY name, id`, pattern)
}

func (s *PostgresStore) ByCategory(ctx context.Context, category string) ([]Product, error) {
	return s.query(ctx, `SELECT `+productColumns+` FROM products
		WHERE $1 = ANY(categories)
		ORDER BY name, id`, category)
}

func (s *PostgresStore) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	row := s.DB.QueryRow(ctx, `
		UPDATE products
		SET name=$2, description=$3, price=$4::numeric, stock=$5, categories=$6, image_url=$7, updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price.String(), p.Stock, p.Categories, p.ImageURL,
	)
	err := row.Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("catalog: update product: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetStock(ctx context.Context, id string, stock int) (*Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	row := s.DB.QueryRow(ctx, `
		UPDATE products SET stock=$2, updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns, id, stock)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.Categories, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse price %q: %w", price, err)
	}
	p.Price = d
	return &p, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
