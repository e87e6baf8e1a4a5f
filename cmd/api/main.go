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
	"github.com/talentkonnect/raffle-backend/api/routes"
	"github.com/talentkonnect/raffle-backend/internal/app"
	stripewebhook "github.com/talentkonnect/raffle-backend/internal/webhooks/stripe"
	"github.com/talentkonnect/raffle-backend/pkg/config"
	"github.com/talentkonnect/raffle-backend/pkg/db"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
	"github.com/talentkonnect/raffle-backend/pkg/metrics"
	"github.com/talentkonnect/raffle-backend/pkg/migrate"
	"github.com/talentkonnect/raffle-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
	cfg.Service.Kind = "api"

	logg = logger.ForApp("api", cfg.App)

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

	if err := migrate.EnsureSchema(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	var guard *stripewebhook.DeliveryGuard
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		guard, err = stripewebhook.NewDeliveryGuard(redisClient, cfg.Stripe.DedupeTTL, "stripe-webhook")
		if err != nil {
			logg.Error(context.Background(), "failed to create webhook delivery guard", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; admin rate limiting and webhook dedupe disabled")
	}

	comps, err := app.Build(context.Background(), cfg, logg, dbClient, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	if cfg.Stripe.Secret == "" {
		logg.Warn(context.Background(), "stripe webhook secret not set; webhook endpoint disabled")
	}
	if cfg.Admin.Token == "" {
		logg.Warn(context.Background(), "admin token not set; admin endpoints disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Gatherer:  prometheus.DefaultGatherer,
			HTTP:      metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Ledger:    comps.Ledger,
			Checkout:  comps.Checkout,
			Manual:    comps.Manual,
			Reconcile: comps.AdminReconcile,
			Webhook:   comps.Webhook,
			Guard:     guard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
