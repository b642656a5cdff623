package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dextasynergyservices/bookprinta-sub000/api/controllers"
	webhookcontrollers "github.com/dextasynergyservices/bookprinta-sub000/api/controllers/webhooks"
	"github.com/dextasynergyservices/bookprinta-sub000/api/middleware"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/gateways"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/notifications"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger

	Gateways          gateways.Service
	Payments          payments.Service
	NotificationsRepo notifications.Repository

	Metrics *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(deps.Payments, deps.Gateways, logg))
		r.Post("/flutterwave", webhookcontrollers.FlutterwaveWebhook(deps.Payments, deps.Gateways, logg))
		r.Post("/opay", webhookcontrollers.OPayWebhook(deps.Payments, deps.Gateways, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/gateways", controllers.ListGateways(deps.Gateways, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initialize", controllers.InitializePayment(deps.Payments, logg))
			r.Get("/verify/{reference}", controllers.VerifyPayment(deps.Payments, logg))
			r.Post("/bank-transfer", controllers.SubmitBankTransfer(deps.Payments, logg))
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(logg))

		r.Put("/gateways/{provider}", controllers.UpsertGateway(deps.Gateways, logg))

		r.Route("/bank-transfers", func(r chi.Router) {
			r.Get("/", controllers.ListBankTransfers(deps.Payments, logg))
			r.Post("/{id}/approve", controllers.DecideBankTransfer(deps.Payments, logg, true))
			r.Post("/{id}/reject", controllers.DecideBankTransfer(deps.Payments, logg, false))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListUnreadNotifications(deps.NotificationsRepo, logg))
			r.Post("/{id}/read", controllers.MarkNotificationRead(deps.NotificationsRepo, logg))
		})
	})

	return r
}
