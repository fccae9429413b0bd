package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-saga/internal/config"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-saga/internal/kafka"
	"github.com/ariefcatur/go-shop-saga/internal/logging"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/ariefcatur/go-shop-saga/internal/orders"
	"github.com/ariefcatur/go-shop-saga/internal/postgres"
	"github.com/ariefcatur/go-shop-saga/internal/reconcile"
	"github.com/ariefcatur/go-shop-saga/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("reconciler")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("reconciler_exit", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := postgres.Connect(ctx, postgres.Options{
		DSN:       cfg.PostgresDSN,
		MaxConns:  int32(cfg.PostgresMaxConns),
		MinConns:  int32(cfg.PostgresMinConns),
		SlowQuery: cfg.PostgresSlowQuery,
		Log:       log,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, postgres.SchemaOrders); err != nil {
		return err
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	m := metrics.New(prometheus.NewRegistry(), cfg.ServiceName)
	store := &reconcile.PostgresStore{DB: db}
	svc := &reconcile.Service{
		Store:   store,
		Dedup:   &redisx.Deduper{RDB: rdb, Service: cfg.ServiceName},
		Log:     log,
		Metrics: m,
	}

	router := httpx.NewRouter(log, m)
	(&reconcile.Handler{Store: store, Log: log}).Register(router)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReconcilerGroup, orders.TopicStockLeaked, cfg.ReconcilerWorkers, log)
	log.Info("reconciler_started",
		zap.String("group", cfg.ReconcilerGroup),
		zap.String("topic", orders.TopicStockLeaked),
		zap.Int("workers", cfg.ReconcilerWorkers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cons.Start(gctx, svc.HandleStockLeaked) })
	g.Go(func() error {
		return httpx.Serve(gctx, &http.Server{Addr: cfg.HTTPAddr, Handler: router}, log)
	})
	return g.Wait()
}
