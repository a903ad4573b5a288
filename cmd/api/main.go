package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payment"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

type backend struct {
	orders  orders.Store
	catalog catalog.Reader
	carts   cart.Store
	events  orders.EventPublisher
	redis   *redis.Client
	dedup   payment.Deduper
	close   func()
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var be backend
	switch cfg.Storage {
	case "memory":
		be = memoryBackend()
	case "postgres":
		be, err = postgresBackend(ctx, cfg, log)
		if err != nil {
			log.Fatal("storage init", zap.Error(err))
		}
	default:
		log.Fatal("unknown STORAGE", zap.String("storage", cfg.Storage))
	}
	defer be.close()

	taxRate, err := orders.ParseTaxRate(cfg.TaxRate)
	if err != nil {
		log.Fatal("invalid TAX_RATE", zap.Error(err))
	}
	gateway, err := payment.NewMidtrans(payment.MidtransConfig{
		ServerKey:  cfg.MidtransServerKey,
		Production: cfg.MidtransProduction,
	})
	if err != nil {
		log.Fatal("midtrans init", zap.Error(err))
	}

	carts, err := cart.NewService(cart.Deps{Store: be.carts, Catalog: be.catalog, Logger: log})
	if err != nil {
		log.Fatal("cart service", zap.Error(err))
	}
	svc, err := orders.NewService(orders.Deps{
		Store:   be.orders,
		Catalog: be.catalog,
		Gateway: gateway,
		Carts:   carts,
		Events:  be.events,
		Pricing: orders.Pricing{ShippingFee: cfg.ShippingFee, TaxRate: taxRate},
		Logger:  log,
	})
	if err != nil {
		log.Fatal("order service", zap.Error(err))
	}
	rec, err := payment.NewReconciler(payment.ReconcilerDeps{
		Verifier: payment.SignatureVerifier{ServerKey: cfg.MidtransServerKey},
		Orders:   svc,
		Dedup:    be.dedup,
		Logger:   log,
	})
	if err != nil {
		log.Fatal("reconciler", zap.Error(err))
	}

	router := httpx.NewRouter(log)
	(&httpx.CartHandler{Carts: carts}).Register(router)
	(&httpx.OrdersHandler{Orders: svc, Carts: carts, Redis: be.redis}).Register(router)
	(&httpx.AdminHandler{Orders: svc, Redis: be.redis}).Register(router)
	(&httpx.WebhookHandler{Payments: rec}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}

func memoryBackend() backend {
	store := memstore.New()
	return backend{
		orders:  store,
		catalog: store,
		carts:   cart.NewMemoryStore(),
		close:   func() {},
	}
}

func postgresBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (backend, error) {
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return backend{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return backend{}, err
	}
	rdb := redisx.New(cfg.RedisAddr)

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	prodCtx, stopProd := context.WithCancel(ctx)
	prod.Start(prodCtx)

	return backend{
		orders:  &orders.PGStore{DB: db},
		catalog: &catalog.PGCatalog{DB: db},
		carts:   &cart.RedisStore{Redis: rdb, TTL: cfg.CartTTL},
		events:  &orders.KafkaPublisher{Producer: prod, Service: cfg.ServiceName},
		redis:   rdb,
		dedup:   redisx.Dedup{Redis: rdb, Scope: payment.DedupScope},
		close: func() {
			prod.Close() // flush inbox, then close writer
			prod.WaitClosed()
			stopProd()
			_ = rdb.Close()
			db.Close()
		},
	}, nil
}
