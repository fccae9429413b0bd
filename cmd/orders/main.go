package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/ariefcatur/go-shop-saga/internal/config"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-saga/internal/kafka"
	"github.com/ariefcatur/go-shop-saga/internal/logging"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/ariefcatur/go-shop-saga/internal/orders"
	"github.com/ariefcatur/go-shop-saga/internal/postgres"
	"github.com/ariefcatur/go-shop-saga/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("orders")
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
		log.Fatal("orders_exit", zap.Error(err))
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
		log.Warn("redis_unavailable", zap.Error(err))
	}

	clk := clock.NewSystem()
	verifier, err := auth.NewVerifier(cfg.JWTSecret, clk)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.NewRegistry(), cfg.ServiceName)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	events := &orders.KafkaPublisher{Producer: prod}
	store := &orders.PostgresStore{DB: db}

	h := &orders.Handler{
		Coordinator: &orders.Coordinator{
			Verifier: verifier,
			Stock:    &orders.StockClient{BaseURL: cfg.CatalogURL, Timeout: cfg.StockCallTimeout},
			Store:    store,
			Clock:    clk,
			Attempts: &redisx.SagaLog{RDB: rdb},
			Events:   events,
			Log:      log,
			Metrics:  m,
			Service:  cfg.ServiceName,
		},
		Service: &orders.Service{
			Store:   store,
			Policy:  orders.PolicyFor(cfg.StrictTransitions),
			Clock:   clk,
			Cache:   &redisx.StatusCache{RDB: rdb},
			Events:  events,
			Log:     log,
			Service: cfg.ServiceName,
		},
		Verifier:    verifier,
		Idempotency: &redisx.Idempotency{RDB: rdb},
		Log:         log,
	}
	router := httpx.NewRouter(log, m)
	h.Register(router)

	// The producer outlives the HTTP server so requests still draining can publish.
	prodCtx, stopProducer := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return prod.Run(prodCtx) })
	g.Go(func() error {
		defer stopProducer()
		return httpx.Serve(ctx, &http.Server{Addr: cfg.HTTPAddr, Handler: router}, log)
	})
	return g.Wait()
}
