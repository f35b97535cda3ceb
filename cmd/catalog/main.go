package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/catalog"
	"github.com/danukusuma/go-order-saga/internal/config"
	"github.com/danukusuma/go-order-saga/internal/httpx"
	kafkax "github.com/danukusuma/go-order-saga/internal/kafka"
	"github.com/danukusuma/go-order-saga/internal/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", "catalog"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	prod := kafkax.NewEventProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start()

	svc := &catalog.Service{
		Store:    &catalog.Repo{DB: db},
		Producer: prod,
		Name:     "catalog",
		Log:      log,
	}

	router := httpx.NewRouter()
	(&httpx.ProductsHandler{Service: svc, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	prod.Close()
	prod.WaitClosed()
}
