// Package bootstrap assembles the storefront from its configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/raniamart/storefront/internal/auth"
	"github.com/raniamart/storefront/internal/cart"
	"github.com/raniamart/storefront/internal/catalog"
	"github.com/raniamart/storefront/internal/checkout"
	"github.com/raniamart/storefront/internal/config"
	"github.com/raniamart/storefront/internal/events"
	h "github.com/raniamart/storefront/internal/http"
	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/receipt"
	"github.com/raniamart/storefront/internal/remote"
)

type App struct {
	Router   http.Handler
	Cart     *cart.Synchronizer
	Checkout *checkout.Orchestrator
	Log      *slog.Logger
}

// InitWithConfig wires every component. The returned cleanup closes the Redis and Kafka
// connections it opened.
func InitWithConfig(cfg config.Config) (*App, func(), error) {
	log := logger.Init(logger.Options{
		Level:    cfg.Log.Level,
		FilePath: cfg.Log.FilePath,
	}).With("app", cfg.App.Name)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// init auth
	tokens, err := auth.NewStore(cfg.Auth.TokenFile)
	if err != nil {
		return nil, nil, fmt.Errorf("auth store: %w", err)
	}

	// init remote api
	api := remote.New(remote.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}, remote.WithLogger(logger.Component(log, "remote")))

	lookup := catalog.New(api, cfg.Catalog.TTL, catalog.WithLogger(logger.Component(log, "catalog")))
	carts := cart.NewSynchronizer(api, tokens,
		cart.WithEnricher(lookup),
		cart.WithLogger(logger.Component(log, "cart")),
	)

	format, err := receipt.ParseFormat(cfg.Receipt.Format)
	if err != nil {
		return nil, nil, err
	}
	opts := []checkout.Option{
		checkout.WithFormat(format),
		checkout.WithLogger(logger.Component(log, "checkout")),
	}

	// init redis
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			cleanup()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		opts = append(opts,
			checkout.WithArchive(receipt.NewRedisStore(rdb, cfg.Receipt.ArchiveTTL)),
			checkout.WithKeyStore(checkout.NewRedisKeyStore(rdb, cfg.Idempotency.TTL)),
		)
	} else {
		opts = append(opts, checkout.WithKeyStore(checkout.NewMemoryKeyStore(cfg.Idempotency.TTL)))
	}

	// init kafka
	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				log.Warn("kafka writer close failed", "error", err)
			}
		})
		opts = append(opts, checkout.WithPublisher(pub))
	}

	orchestrator := checkout.NewOrchestrator(api, tokens, carts, receipt.NewGenerator(log), opts...)

	// init handlers + router
	timeout := cfg.HTTP.RequestTimeout
	router := h.NewRouter(h.RouterConfig{
		Name:               cfg.App.Name,
		RequestTimeout:     timeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, h.Handlers{
		Cart:     h.NewCartHandler(carts, timeout),
		Checkout: h.NewCheckoutHandler(orchestrator, carts, timeout),
		Receipts: h.NewReceiptHandler(orchestrator, timeout),
		Session:  h.NewSessionHandler(tokens, carts, timeout),
		Products: h.NewProductHandler(lookup, timeout),
	}, log)

	log.Info("storefront initialised",
		"api", cfg.API.BaseURL,
		"redis", cfg.Redis.Addr != "",
		"kafka", len(cfg.Kafka.Brokers) > 0,
		"receipt_format", string(format),
	)

	return &App{Router: router, Cart: carts, Checkout: orchestrator, Log: log}, cleanup, nil
}
