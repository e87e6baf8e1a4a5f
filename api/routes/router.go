package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/talentkonnect/raffle-backend/api/controllers"
	webhookcontrollers "github.com/talentkonnect/raffle-backend/api/controllers/webhooks"
	"github.com/talentkonnect/raffle-backend/api/middleware"
	"github.com/talentkonnect/raffle-backend/internal/checkout"
	"github.com/talentkonnect/raffle-backend/internal/credits"
	"github.com/talentkonnect/raffle-backend/internal/ledger"
	"github.com/talentkonnect/raffle-backend/internal/reconcile"
	stripewebhook "github.com/talentkonnect/raffle-backend/internal/webhooks/stripe"
	"github.com/talentkonnect/raffle-backend/pkg/config"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
	"github.com/talentkonnect/raffle-backend/pkg/metrics"
	"github.com/talentkonnect/raffle-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. Redis, Guard and the
// Stripe-backed services may be nil when those integrations are disabled.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Ledger    *ledger.Store
	Checkout  checkout.Service
	Manual    *credits.ManualCrediter
	Reconcile *reconcile.Service
	Webhook   *stripewebhook.Service
	Guard     *stripewebhook.DeliveryGuard
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTP),
		middleware.CORS(cfg.CORS.Origins),
	)

	var redisPinger controllers.Pinger
	var idempotency func(http.Handler) http.Handler
	var adminLimit func(http.Handler) http.Handler
	adminPolicy := middleware.NewRateLimitPolicy("admin", cfg.Admin.RateLimitWindow, cfg.Admin.RateLimitPerIP)
	if d.Redis != nil {
		redisPinger = d.Redis
		idempotency = middleware.Idempotency(d.Redis, 0, logg)
		adminLimit = middleware.RateLimit(adminPolicy, d.Redis, logg)
	} else {
		idempotency = passthrough
		adminLimit = passthrough
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "db", Pinger: d.DB},
			controllers.ReadinessCheck{Name: "redis", Pinger: redisPinger},
		))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/stripe/webhook", stripeWebhookHandler(d))
		r.With(idempotency).Post("/payment/create-checkout", controllers.CreateCheckout(d.Checkout, logg))
		r.Get("/raffle/tickets/{userId}", controllers.RaffleTickets(d.Ledger, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminLimit)
			r.Use(middleware.AdminToken(cfg.Admin.Token, logg))

			r.With(idempotency).Post("/tickets/credit", controllers.AdminCredit(d.Manual, logg))
			r.Post("/stripe/replay-session", controllers.AdminReplaySession(d.Reconcile, logg))
			r.Post("/stripe/reconcile-recent", controllers.AdminReconcileRecent(d.Reconcile, cfg.Reconcile.LookbackHours, logg))
			r.Get("/webhooks/recent", controllers.AdminRecentWebhooks(d.Ledger, logg))
		})
	})

	return r
}

func stripeWebhookHandler(d Deps) http.HandlerFunc {
	var svc webhookcontrollers.StripeWebhookService
	if d.Webhook != nil {
		svc = d.Webhook
	}
	if d.Guard == nil {
		return webhookcontrollers.StripeWebhook(svc, d.Config.Stripe.Secret, nil, d.Logger)
	}
	return webhookcontrollers.StripeWebhook(svc, d.Config.Stripe.Secret, d.Guard, d.Logger)
}

func passthrough(next http.Handler) http.Handler { return next }
