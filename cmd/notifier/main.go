package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MarcosDevYT/ecommerce-core/internal/config"
	kafkax "github.com/MarcosDevYT/ecommerce-core/internal/kafka"
	"github.com/MarcosDevYT/ecommerce-core/internal/notify"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
	"github.com/MarcosDevYT/ecommerce-core/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Sender: &notify.SMTPSender{
			Addr: cfg.SMTPAddr,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.EmailFrom,
		},
		Dedup:       &notify.RedisDeduper{R: rdb},
		ServiceName: cfg.ServiceName + "-notifier",
		Log:         logger,
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderPaid, workers, logger)

	go func() {
		logger.Info("notifier consumer started",
			zap.String("group", group), zap.String("topic", orders.TopicOrderPaid), zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleOrderPaid); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
