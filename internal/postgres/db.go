package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Options sizes the pool and routes query diagnostics to the service logger.
type Options struct {
	DSN      string
	MaxConns int32
	MinConns int32

	// SlowQuery logs queries taking at least this long; zero disables it.
	SlowQuery time.Duration
	Log       *zap.Logger
}

func Connect(ctx context.Context, o Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(o.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if o.MaxConns > 0 {
		cfg.MaxConns = o.MaxConns
	}
	if o.MinConns > 0 && o.MinConns <= cfg.MaxConns {
		cfg.MinConns = o.MinConns
	}
	cfg.HealthCheckPeriod = 30 * time.Second
	if o.Log != nil {
		cfg.ConnConfig.Tracer = &QueryLogger{Log: o.Log, Slow: o.SlowQuery}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if o.Log != nil {
		o.Log.Info("postgres_connected", zap.Int32("max_conns", cfg.MaxConns), zap.Int32("min_conns", cfg.MinConns))
	}
	return pool, nil
}

// QueryLogger is a pgx tracer that logs failed and slow queries. Constraint
// violations are logged at debug since the stores turn them into domain errors.
type QueryLogger struct {
	Log  *zap.Logger
	Slow time.Duration
}

type queryStartKey struct{}

type queryStart struct {
	sql string
	at  time.Time
}

func (q *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, at: time.Now()})
}

func (q *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, _ := ctx.Value(queryStartKey{}).(queryStart)
	elapsed := time.Since(st.at)
	fields := []zap.Field{zap.String("sql", st.sql), zap.Duration("duration", elapsed)}

	if data.Err != nil {
		var pgErr *pgconn.PgError
		if errors.As(data.Err, &pgErr) {
			fields = append(fields, zap.String("pg_code", pgErr.Code))
			if strings.HasPrefix(pgErr.Code, "23") {
				q.Log.Debug("postgres_constraint_violation", append(fields, zap.Error(data.Err))...)
				return
			}
		}
		if errors.Is(data.Err, context.Canceled) || errors.Is(data.Err, context.DeadlineExceeded) {
			q.Log.Warn("postgres_query_cancelled", append(fields, zap.Error(data.Err))...)
			return
		}
		q.Log.Error("postgres_query_failed", append(fields, zap.Error(data.Err))...)
		return
	}
	if q.Slow > 0 && elapsed >= q.Slow {
		q.Log.Warn("postgres_slow_query", append(fields, zap.String("command", data.CommandTag.String()))...)
	}
}
