package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MarcosDevYT/ecommerce-core/internal/cart"
	"github.com/MarcosDevYT/ecommerce-core/internal/config"
	"github.com/MarcosDevYT/ecommerce-core/internal/httpx"
	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
	kafkax "github.com/MarcosDevYT/ecommerce-core/internal/kafka"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
	"github.com/MarcosDevYT/ecommerce-core/internal/payment"
	"github.com/MarcosDevYT/ecommerce-core/internal/postgres"
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

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	pCreated.Start(ctx)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, logger)
	pPaid.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, logger)
	pCancelled.Start(ctx)

	// Stores & services
	ledger := inventory.Ledger{}
	catalog := &inventory.Catalog{DB: db, Ledger: ledger}
	carts := &cart.Store{R: rdb, TTL: cfg.CartTTL, Catalog: catalog}
	repo := &orders.Repo{DB: db, Ledger: ledger}

	workflow := &orders.Workflow{
		Carts:    carts,
		UOW:      repo,
		Store:    repo,
		Producer: pCreated,
		Service:  cfg.ServiceName,
		Log:      logger,
	}

	gateway := payment.NewStripeGateway(
		cfg.StripeSecretKey, cfg.StripeWebhookSecret,
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL,
	)
	reconciler := &payment.Reconciler{
		Events:          &payment.PgEventLedger{DB: db},
		Orders:          repo,
		PaidEvents:      pPaid,
		CancelledEvents: pCancelled,
		Service:         cfg.ServiceName,
		Log:             logger,
	}

	// Router & handlers
	router := httpx.NewRouter()
	(&httpx.CartHandler{Carts: carts}).Register(router)
	(&httpx.OrdersHandler{Workflow: workflow, Catalog: catalog}).Register(router)
	(&httpx.PaymentsHandler{
		Workflow:   workflow,
		Gateway:    gateway,
		Reconciler: reconciler,
		Catalog:    catalog,
		Sessions:   repo,
		Log:        logger,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled} {
		p.Close()
	}
	cancel()
	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled} {
		p.WaitClosed()
	}
}
