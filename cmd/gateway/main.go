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
	"github.com/ariefcatur/go-shop-saga/internal/gateway"
	"github.com/ariefcatur/go-shop-saga/internal/httpx"
	"github.com/ariefcatur/go-shop-saga/internal/logging"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("gateway")
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
		log.Fatal("gateway_exit", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	routes, err := gateway.NewTable(cfg.AuthURL, cfg.CatalogURL, cfg.OrdersURL)
	if err != nil {
		return err
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret, clock.NewSystem())
	if err != nil {
		return err
	}
	for _, rt := range routes {
		log.Info("gateway_route", zap.String("prefix", rt.Prefix), zap.String("upstream", rt.Upstream.String()))
	}

	m := metrics.New(prometheus.NewRegistry(), cfg.ServiceName)
	router := httpx.NewRouter(log, m)
	(&gateway.Handler{Routes: routes, Verifier: verifier, Log: log}).Register(router)

	return httpx.Serve(ctx, &http.Server{Addr: cfg.HTTPAddr, Handler: router}, log)
}
