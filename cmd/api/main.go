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

	"github.com/danukusuma/go-order-saga/internal/config"
	"github.com/danukusuma/go-order-saga/internal/events"
	"github.com/danukusuma/go-order-saga/internal/httpx"
	kafkax "github.com/danukusuma/go-order-saga/internal/kafka"
	"github.com/danukusuma/go-order-saga/internal/orders"
	"github.com/danukusuma/go-order-saga/internal/postgres"
	"github.com/danukusuma/go-order-saga/internal/productcache"
	"github.com/danukusuma/go-order-saga/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewEventProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start()

	repo := &orders.Repo{DB: db}
	cache := productcache.NewRedisStore(rdb, cfg.ServiceName)

	svc := &orders.Service{
		Store:    repo,
		Catalog:  cache,
		Producer: prod,
		Name:     cfg.ServiceName,
		Log:      log,
	}
	coord := &orders.Coordinator{
		Store:    repo,
		Producer: prod,
		Redis:    rdb,
		Name:     cfg.ServiceName,
		Log:      log,
	}
	sync := &productcache.Synchronizer{Store: cache, Log: log}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: svc, Redis: rdb, Log: log}).Register(router)

	group := cfg.ServiceName
	for topic, h := range map[string]kafkax.Handler{
		events.TopicPaymentProcessed: coord.HandlePaymentProcessed,
		events.TopicPaymentFailed:    coord.HandlePaymentFailed,
		events.TopicStockReserved:    coord.HandleInventoryReserved,
		events.TopicStockRejected:    coord.HandleInventoryFailed,
		events.TopicProductCreated:   sync.HandleProductCreated,
		events.TopicProductUpdated:   sync.HandleProductUpdated,
		events.TopicProductDeleted:   sync.HandleProductDeleted,
	} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, cfg.ConsumerWorkers, cfg.ConsumerPrefetch, log)
		go func(topic string, cons *kafkax.Consumer, h kafkax.Handler) {
			log.Info("consumer started", zap.String("topic", topic), zap.String("group", group))
			if err := cons.Start(ctx, h); err != nil {
				log.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(topic, cons, h)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	prod.Close()
	prod.WaitClosed()
}
