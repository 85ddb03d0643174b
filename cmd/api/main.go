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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/privilegia/privilegia-backend/api/controllers"
	"github.com/privilegia/privilegia-backend/api/routes"
	"github.com/privilegia/privilegia-backend/internal/categorization"
	"github.com/privilegia/privilegia-backend/internal/currency"
	"github.com/privilegia/privilegia-backend/internal/favorites"
	"github.com/privilegia/privilegia-backend/internal/flashoffers"
	"github.com/privilegia/privilegia-backend/internal/partners"
	"github.com/privilegia/privilegia-backend/internal/pricing"
	"github.com/privilegia/privilegia-backend/internal/privileges"
	"github.com/privilegia/privilegia-backend/internal/subscriptions"
	"github.com/privilegia/privilegia-backend/internal/users"
	stripewebhook "github.com/privilegia/privilegia-backend/internal/webhooks/stripe"
	"github.com/privilegia/privilegia-backend/pkg/config"
	"github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/geoip"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/maps"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
	"github.com/privilegia/privilegia-backend/pkg/migrate"
	"github.com/privilegia/privilegia-backend/pkg/redis"
	pkgstripe "github.com/privilegia/privilegia-backend/pkg/stripe"
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

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := metrics.NewDomainMetrics(registry)

	usersRepo := users.NewRepository(dbClient.DB())
	partnersRepo := partners.NewRepository(dbClient.DB())
	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())
	engine := pricing.NewDefaultEngine()

	resolver := currency.NewResolver(currency.ResolverParams{
		Locator:  geoip.NewClient(geoip.WithBaseURL(cfg.GeoIP.BaseURL), geoip.WithTimeout(cfg.GeoIP.Timeout)),
		Cache:    redisClient,
		Logger:   logg,
		Timeout:  cfg.GeoIP.Timeout,
		CacheTTL: cfg.GeoIP.CacheTTL,
	})

	provider := subscriptions.NewStripeProvider(stripeClient)
	checkout, err := subscriptions.NewCheckoutService(subscriptions.CheckoutParams{
		Pricing:     engine,
		Provider:    provider,
		Users:       usersRepo,
		PriceMap:    cfg.Stripe.PriceMap,
		ProductName: cfg.Stripe.ProductName,
		SuccessURL:  cfg.Stripe.SuccessURL,
		CancelURL:   cfg.Stripe.CancelURL,
		Logger:      logg,
	})
	requireService(ctx, logg, "checkout", err)

	billingEvents, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		SubscriptionRepo:  subscriptionRepo,
		Users:             usersRepo,
		Provider:          provider,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	requireService(ctx, logg, "billing webhook", err)

	billingGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.IdempotencyTTL, stripewebhook.DefaultScope)
	requireService(ctx, logg, "billing webhook guard", err)

	favoritesService, err := favorites.NewService(favorites.NewRepository(dbClient.DB()), partnersRepo)
	requireService(ctx, logg, "favorites", err)

	offers, err := flashoffers.NewService(flashoffers.ServiceParams{
		Repo:         flashoffers.NewRepository(dbClient.DB()),
		Tx:           dbClient,
		Members:      usersRepo,
		Partners:     partnersRepo,
		Favorites:    favoritesService,
		Categorizer:  buildCategorizer(ctx, cfg.AI, logg),
		Metrics:      domainMetrics,
		RadiusMeters: cfg.Privileges.NearbyRadiusMeters,
		Logger:       logg,
	})
	requireService(ctx, logg, "flash offers", err)

	activations, err := privileges.NewService(privileges.ServiceParams{
		Repo:          privileges.NewRepository(dbClient.DB()),
		Users:         usersRepo,
		Tx:            dbClient,
		Access:        subscriptions.NewAccessChecker(subscriptionRepo),
		Privileges:    partnersRepo,
		Metrics:       domainMetrics,
		Window:        cfg.Privileges.ActivationWindow,
		FeedbackBonus: cfg.Privileges.FeedbackBonus,
		Logger:        logg,
	})
	requireService(ctx, logg, "privileges", err)

	partnerProfiles, err := partners.NewService(partnersRepo, buildGeocoder(ctx, cfg.Maps, logg), logg)
	requireService(ctx, logg, "partners", err)

	handler := routes.NewRouter(
		routes.Deps{
			Config: cfg,
			Logger: logg,
			Redis:  redisClient,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Gatherer: registry,
			Metrics:  domainMetrics,
		},
		routes.Services{
			Pricing:       engine,
			Currency:      resolver,
			Checkout:      checkout,
			MemberOffers:  offers,
			PartnerOffers: offers,
			Activations:   activations,
			Validations:   activations,
			Favorites:     favoritesService,
			Members:       usersRepo,
			Partners:      partnerProfiles,
			BillingEvents: billingEvents,
			BillingSecret: stripeClient,
			BillingGuard:  billingGuard,
		},
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

// buildCategorizer returns a categorizer that falls back to "general" when
// no Gemini key is configured.
func buildCategorizer(ctx context.Context, cfg config.AIConfig, logg *logger.Logger) *categorization.Service {
	var generator categorization.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := categorization.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "gemini client unavailable, offers default to general")
		} else {
			generator = gemini
		}
	}
	return categorization.NewService(generator, cfg.Timeout, logg)
}

func buildGeocoder(ctx context.Context, cfg config.MapsConfig, logg *logger.Logger) partners.Geocoder {
	if cfg.APIKey == "" {
		logg.Warn(ctx, "maps api key missing, partner addresses stored as text")
		return nil
	}
	client, err := maps.NewClient(cfg.APIKey, maps.WithTimeout(cfg.Timeout), maps.WithRegions(cfg.RegionCodes))
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "maps client unavailable")
		return nil
	}
	return client
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "service", name), "failed to create service", err)
	os.Exit(1)
}
