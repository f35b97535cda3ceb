package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/config"
	"github.com/danukusuma/go-order-saga/internal/events"
	kafkax "github.com/danukusuma/go-order-saga/internal/kafka"
	"github.com/danukusuma/go-order-saga/internal/payments"
	"github.com/danukusuma/go-order-saga/internal/postgres"
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
	log = log.With(zap.String("service", "payment"))

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

	svc := &payments.Service{
		Store:    &payments.Repo{DB: db},
		Charger:  &payments.SimCharger{Latency: 150 * time.Millisecond},
		Redis:    rdb,
		Producer: prod,
		Name:     "payment",
		Log:      log,
	}

	group := "payment-svc"
	for topic, h := range map[string]kafkax.Handler{
		events.TopicOrderCreated:     svc.HandleOrderCreated,
		events.TopicPaymentRefundReq: svc.HandleRefundRequested,
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

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")
	cancel()
	prod.Close()
	prod.WaitClosed()
}
