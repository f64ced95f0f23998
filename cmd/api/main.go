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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orderflowhq/orderflow-backend/api/routes"
	"github.com/orderflowhq/orderflow-backend/internal/cron"
	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/internal/payments"
	"github.com/orderflowhq/orderflow-backend/internal/realtime"
	"github.com/orderflowhq/orderflow-backend/internal/reconcile"
	"github.com/orderflowhq/orderflow-backend/internal/stock"
	"github.com/orderflowhq/orderflow-backend/pkg/config"
	"github.com/orderflowhq/orderflow-backend/pkg/db"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/metrics"
	"github.com/orderflowhq/orderflow-backend/pkg/migrate"
	"github.com/orderflowhq/orderflow-backend/pkg/redis"
	pkgstripe "github.com/orderflowhq/orderflow-backend/pkg/stripe"
)

const (
	shutdownGrace = 15 * time.Second
	// webhookScope namespaces idempotency keys for gateway event deliveries.
	webhookScope = "stripe:webhook"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	hub := realtime.NewHub(cfg.Realtime, logg)

	ordersRepo := orders.NewRepository(dbClient.DB())
	stockRepo := stock.NewRepository(dbClient.DB())

	engine, err := orders.NewEngine(ordersRepo, stockRepo, dbClient, hub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create lifecycle engine", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	stockSvc, err := stock.NewService(stockRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Orders:        ordersRepo,
		Gateway:       payments.NewGatewayClient(stripeClient),
		SigningSecret: stripeClient.SigningSecret(),
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	guard, err := payments.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookIdempotencyTTL, webhookScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	pricing, err := reconcile.NewPricing(cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to parse pricing config", err)
		os.Exit(1)
	}

	coordinator, err := reconcile.NewCoordinator(reconcile.CoordinatorParams{
		Orders:    ordersRepo,
		Stock:     stockRepo,
		Engine:    engine,
		Catalog:   reconcile.NewProductLoader(dbClient.DB()),
		Payments:  paymentsSvc,
		Guard:     guard,
		Tx:        dbClient,
		Notifier:  hub,
		Pricing:   pricing,
		Checkouts: checkoutMetrics,
		Webhooks:  webhookMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create coordinator", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Orders.ExpiryEnabled {
		if err := startExpiryCron(ctx, cfg, logg, redisClient, ordersRepo, engine, cronMetrics); err != nil {
			logg.Error(ctx, "failed to start order expiry cron", err)
			os.Exit(1)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Orders:      ordersSvc,
			Engine:      engine,
			Stock:       stockSvc,
			Payments:    paymentsSvc,
			Coordinator: coordinator,
			Hub:         hub,
			Metrics:     registry,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}

// startExpiryCron runs the pending-order expiry sweep inside the api
// process, fleet-wide single flight via the redis lock.
func startExpiryCron(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	ordersRepo orders.Repository,
	engine *orders.Engine,
	cronMetrics *metrics.CronJobMetrics,
) error {
	job, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger: logg,
		Orders: ordersRepo,
		Engine: engine,
		TTL:    cfg.Orders.ExpiryTTL,
	})
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("order-expiry"), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "cron service stopped unexpectedly", err)
		}
	}()
	return nil
}
