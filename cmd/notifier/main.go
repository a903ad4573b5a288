package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/notify"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName+"-notifier"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc, err := notify.NewService(notify.Deps{
		Sender: notify.LogSender{Logger: log},
		Cache:  notify.RedisStatusCache{Redis: rdb},
		Dedup:  redisx.Dedup{Redis: rdb, Scope: "notifier"},
		Logger: log,
	})
	if err != nil {
		log.Fatal("notifier init", zap.Error(err))
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderEvents, cfg.NotifierWorkers, log)
	log.Info("notifier consumer started",
		zap.String("group", cfg.NotifierGroup),
		zap.String("topic", orders.TopicOrderEvents),
		zap.Int("workers", cfg.NotifierWorkers))
	if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
		log.Error("consumer exit", zap.Error(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
