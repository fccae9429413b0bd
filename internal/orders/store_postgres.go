package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PostgresStore struct{ DB *pgxpool.Pool }

// Create inserts the order row and all item rows in one transaction.
func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, owner_id, status, shipping_address, latitude, longitude, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)`,
		o.ID, o.OwnerID, string(o.Status), o.ShippingAddress, o.Latitude, o.Longitude,
		o.TotalPrice.String(), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("orders: insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items(order_id, position, product_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
			o.ID, i+1, it.ProductID, it.Name, it.Quantity, it.UnitPrice.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("orders: insert items: %w", err)
	}
	return tx.Commit(ctx)
}

const orderColumns = `id::text, owner_id, status, shipping_address, latitude, longitude, total_price::text, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner_id=$1 ORDER BY created_at DESC, id DESC`, ownerID)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
}

// UpdateStatus locks the order row so concurrent updates see each other's result.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, next Status, policy TransitionPolicy, at time.Time) (*Order, Status, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", ErrNotFound
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("orders: lock order: %w", err)
	}
	if !policy.Allow(Status(prev), next) {
		return nil, Status(prev), ErrInvalidTransition
	}

	o, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=$3
		WHERE id=$1
		RETURNING `+orderColumns, id, string(next), at))
	if err != nil {
		return nil, "", fmt.Errorf("orders: update status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	if err := s.loadItems(ctx, []*Order{o}); err != nil {
		return nil, "", err
	}
	return o, Status(prev), nil
}

func (s *PostgresStore) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var ptrs []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, nil
}

// loadItems fills Items for all orders with one query.
func (s *PostgresStore) loadItems(ctx context.Context, os []*Order) error {
	if len(os) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(os))
	ids := make([]string, 0, len(os))
	for _, o := range os {
		o.Items = []Item{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := s.DB.Query(ctx, `
		SELECT order_id::text, product_id, name, quantity, unit_price::text
		FROM order_items
		WHERE order_id::text = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID, price string
			it             Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Quantity, &price); err != nil {
			return err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("orders: parse unit price %q: %w", price, err)
		}
		if o := byID[orderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		status string
		total  string
	)
	if err := row.Scan(&o.ID, &o.OwnerID, &status, &o.ShippingAddress, &o.Latitude, &o.Longitude, &total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("orders: parse total %q: %w", total, err)
	}
	o.Status = Status(status)
	o.TotalPrice = d
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
