package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/privilegia/privilegia-backend/api/controllers"
	webhookcontrollers "github.com/privilegia/privilegia-backend/api/controllers/webhooks"
	"github.com/privilegia/privilegia-backend/api/middleware"
	"github.com/privilegia/privilegia-backend/pkg/config"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
	pkgredis "github.com/privilegia/privilegia-backend/pkg/redis"
)

// Services carries the handler collaborators. A nil service answers with an
// internal error rather than panicking, which keeps partial wiring testable.
type Services struct {
	Pricing       controllers.PricingEngine
	Currency      controllers.CurrencyResolver
	Checkout      controllers.CheckoutCreator
	MemberOffers  controllers.MemberOffers
	PartnerOffers controllers.PartnerOffers
	Activations   controllers.MemberActivations
	Validations   controllers.ActivationValidator
	Favorites     controllers.FavoritesService
	Members       controllers.LocationStore
	Partners      controllers.PartnerProfile

	BillingEvents webhookcontrollers.BillingEventHandler
	BillingSecret webhookcontrollers.SigningSecretSource
	BillingGuard  webhookcontrollers.EventGuard
}

// Deps groups the infrastructure shared by every route.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Redis     *pkgredis.Client
	Readiness map[string]controllers.Pinger
	Gatherer  prometheus.Gatherer
	Metrics   *metrics.DomainMetrics
}

func NewRouter(deps Deps, svc Services) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	var (
		responseStore middleware.ResponseStore
		limiter       middleware.FixedWindowStore
	)
	if deps.Redis != nil {
		responseStore = deps.Redis
		limiter = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, deps.Readiness, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/pricing", func(r chi.Router) {
		r.Post("/calculate", controllers.PricingCalculate(svc.Pricing, svc.Currency, deps.Metrics, logg))
		r.Get("/tiers", controllers.PricingTiers(svc.Pricing, logg))
		r.Get("/detect-currency", controllers.DetectCurrency(svc.Currency, logg))
	})

	writeLimit := middleware.RateLimitPolicy{
		Name:   "member-writes",
		Limit:  cfg.RateLimit.MemberLimit,
		Window: cfg.RateLimit.Window,
	}

	r.Route("/subscription", func(r chi.Router) {
		r.Post("/webhook", webhookcontrollers.StripeWebhook(svc.BillingEvents, svc.BillingSecret, svc.BillingGuard, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(responseStore, logg))
			r.Post("/create-checkout", controllers.CreateCheckout(svc.Checkout, logg))
		})
	})

	r.Route("/member", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleMember))
		r.Use(middleware.Idempotency(responseStore, logg))

		limited := r.With(middleware.RateLimit(writeLimit, limiter, logg))
		limited.Post("/offers/flash/{offer_id}/reserve", controllers.ReserveOffer(svc.MemberOffers, logg))
		limited.Post("/activate-privilege", controllers.ActivatePrivilege(svc.Activations, logg))

		r.Get("/offers/flash/nearby", controllers.NearbyOffers(svc.MemberOffers, logg))
		r.Get("/bookings", controllers.MemberBookings(svc.MemberOffers, logg))
		r.Post("/bookings/{booking_id}/cancel", controllers.CancelBooking(svc.MemberOffers, logg))
		r.Put("/location", controllers.UpdateMemberLocation(svc.Members, logg))

		r.Get("/favorites", controllers.ListFavorites(svc.Favorites, logg))
		r.Post("/favorites/{partner_id}", controllers.AddFavorite(svc.Favorites, logg))
		r.Delete("/favorites/{partner_id}", controllers.RemoveFavorite(svc.Favorites, logg))

		r.Post("/submit-feedback", controllers.SubmitFeedback(svc.Activations, logg))
		r.Get("/activations", controllers.MemberActivationsList(svc.Activations, logg))
		r.Post("/activations/{activation_id}/cancel", controllers.CancelActivation(svc.Activations, logg))
	})

	r.Route("/partner", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRolePartner))
		r.Use(middleware.Idempotency(responseStore, logg))

		r.Post("/offers/flash", controllers.CreateFlashOffer(svc.PartnerOffers, logg))
		r.Get("/offers/flash", controllers.ListFlashOffers(svc.PartnerOffers, logg))
		r.Post("/offers/flash/{offer_id}/cancel", controllers.CancelFlashOffer(svc.PartnerOffers, logg))
		r.Post("/bookings/{booking_id}/validate", controllers.ValidateBooking(svc.PartnerOffers, logg))
		r.Post("/activations/validate", controllers.ValidateActivation(svc.Validations, logg))
		r.Put("/location", controllers.UpdatePartnerLocation(svc.Partners, logg))
		r.Get("/location/suggest", controllers.SuggestAddresses(svc.Partners, logg))
	})

	return r
}
