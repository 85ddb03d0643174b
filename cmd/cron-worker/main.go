package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/privilegia/privilegia-backend/internal/cron"
	"github.com/privilegia/privilegia-backend/internal/flashoffers"
	"github.com/privilegia/privilegia-backend/internal/privileges"
	"github.com/privilegia/privilegia-backend/internal/subscriptions"
	"github.com/privilegia/privilegia-backend/pkg/config"
	"github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
	"github.com/privilegia/privilegia-backend/pkg/migrate"
	"github.com/privilegia/privilegia-backend/pkg/redis"
	pkgstripe "github.com/privilegia/privilegia-backend/pkg/stripe"
)

const lockKeyFormat = "privilegia:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCronJobMetrics(registry)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	sweep, err := cron.NewFlashOfferSweepJob(cron.FlashOfferSweepJobParams{
		Logger:      logg,
		Offers:      flashoffers.NewRepository(dbClient.DB()),
		Activations: privileges.NewRepository(dbClient.DB()),
		Metrics:     metricsCollector,
	})
	if err != nil {
		logg.Error(ctx, "failed to create flash offer sweep job", err)
		os.Exit(1)
	}
	jobs := []cron.Job{sweep}

	// Reconciliation needs billing credentials; the sweep runs without them.
	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "stripe unavailable, subscription reconcile disabled")
	} else {
		reconcile, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
			Logger:   logg,
			DB:       dbClient,
			Repo:     subscriptions.NewRepository(dbClient.DB()),
			Provider: subscriptions.NewStripeProvider(stripeClient),
			Metrics:  metricsCollector,
		})
		if err != nil {
			logg.Error(ctx, "failed to create subscription reconcile job", err)
			os.Exit(1)
		}
		jobs = append(jobs, reconcile)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"jobs":     len(jobs),
		"interval": cfg.Cron.Interval.String(),
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
