package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/diagnostics"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/idempotency"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/sequence"
)

func main() {
	startedAt := time.Now()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Error("db migrate", "err", err)
			os.Exit(1)
		}
	}

	// cart repository runs on database/sql (lib/pq)
	sqlDB, err := db.OpenSQL(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("db open", "err", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	products := catalog.NewRepository(pool)
	orders := order.NewRepository(pool)
	carts := cart.NewRepository(sqlDB)
	sequences := sequence.NewRepository(pool)

	diag := diagnostics.Default(startedAt, pool)
	diag.Register(diagnostics.EventSequences(sequences))

	opts := []checkout.Option{
		checkout.WithLogger(logger),
		checkout.WithMaxAttempts(cfg.CheckoutMaxAttempts),
	}

	// --- events ---
	sink, err := newSink(cfg)
	if err != nil {
		logger.Error("events broker", "broker", cfg.EventsBroker, "err", err)
		os.Exit(1)
	}
	if sink != nil {
		pub := events.NewPublisher(sink, sequences, events.PublisherOptions{Logger: logger})
		defer pub.Close()
		opts = append(opts, checkout.WithNotifier(pub))
		logger.Info("publishing order events", "broker", cfg.EventsBroker)
	}

	svc := checkout.NewService(checkout.NewPostgresUnitOfWork(pool), opts...)

	// --- idempotency ---
	deps := httpapi.Deps{
		Products:         products,
		Orders:           orders,
		Checkout:         svc,
		Carts:            carts,
		Diagnostics:      diag,
		Logger:           logger,
		CheckoutTimeout:  cfg.CheckoutTimeout,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	}
	if cfg.RedisAddr != "" {
		rdb := idempotency.New(cfg.RedisAddr)
		defer rdb.Close()
		deps.Idempotency = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	}

	// --- HTTP ---
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(deps)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newSink(cfg config.Config) (events.Sink, error) {
	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		conn, err := events.DialRabbit(cfg.RabbitMQURL)
		if err != nil {
			return nil, err
		}
		sink, err := events.NewRabbitSink(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return sink, nil
	case config.BrokerKafka:
		return events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.BrokerNone, "":
		return nil, nil
	default:
		return nil, errors.New("unsupported EVENTS_BROKER " + cfg.EventsBroker)
	}
}
