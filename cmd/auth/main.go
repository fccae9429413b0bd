package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-saga/internal/accounts"
	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/ariefcatur/go-shop-saga/internal/config"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"github.com/ariefcatur/go-shop-saga/internal/logging"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/ariefcatur/go-shop-saga/internal/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("auth")
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
		log.Fatal("auth_exit", zap.Error(err))
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
	if err := postgres.Migrate(ctx, db, postgres.SchemaAccounts); err != nil {
		return err
	}

	clk := clock.NewSystem()
	verifier, err := auth.NewVerifier(cfg.JWTSecret, clk)
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration, clk)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.NewRegistry(), cfg.ServiceName)
	router := httpx.NewRouter(log, m)
	h := &accounts.Handler{
		Service: &accounts.Service{
			Store:  &accounts.PostgresStore{DB: db},
			Issuer: issuer,
			Clock:  clk,
			Log:    log,
		},
		Verifier: verifier,
		Log:      log,
	}
	h.Register(router)

	return httpx.Serve(ctx, &http.Server{Addr: cfg.HTTPAddr, Handler: router}, log)
}
