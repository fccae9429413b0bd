package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) Record(ctx context.Context, leaks []Leak) (int, error) {
	if len(leaks) == 0 {
		return 0, nil
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, l := range leaks {
		batch.Queue(`
			INSERT INTO stock_leaks(attempt_id, position, product_id, quantity, owner_id, stage, reason, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (attempt_id, position) DO NOTHING`,
			l.AttemptID, l.Position, l.ProductID, l.Quantity, l.OwnerID, l.Stage, l.Reason, l.OccurredAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range leaks {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("reconcile: insert leak: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// List returns the most recently recorded leaks first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Leak, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT attempt_id::text, position, product_id, quantity, owner_id, stage, reason, occurred_at, recorded_at
		FROM stock_leaks
		ORDER BY recorded_at DESC, attempt_id, position
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Leak{}
	for rows.Next() {
		var l Leak
		if err := rows.Scan(&l.AttemptID, &l.Position, &l.ProductID, &l.Quantity, &l.OwnerID, &l.Stage, &l.Reason, &l.OccurredAt, &l.RecordedAt); err != nil {
			return nil, err
		}
		l.OccurredAt, l.RecordedAt = l.OccurredAt.UTC(), l.RecordedAt.UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}
