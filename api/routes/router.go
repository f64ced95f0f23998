package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orderflowhq/orderflow-backend/api/controllers"
	realtimectl "github.com/orderflowhq/orderflow-backend/api/controllers/realtime"
	"github.com/orderflowhq/orderflow-backend/api/controllers/webhooks"
	"github.com/orderflowhq/orderflow-backend/api/middleware"
	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/internal/payments"
	"github.com/orderflowhq/orderflow-backend/internal/realtime"
	"github.com/orderflowhq/orderflow-backend/internal/reconcile"
	"github.com/orderflowhq/orderflow-backend/internal/stock"
	"github.com/orderflowhq/orderflow-backend/pkg/config"
	"github.com/orderflowhq/orderflow-backend/pkg/db"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	pkgredis "github.com/orderflowhq/orderflow-backend/pkg/redis"
)

// RouterParams carries every dependency the HTTP surface needs. All fields
// are required except Metrics, which disables the /metrics endpoint when nil.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB    *db.Client
	Redis *pkgredis.Client

	Orders      *orders.Service
	Engine      *orders.Engine
	Stock       *stock.Service
	Payments    *payments.Service
	Coordinator *reconcile.Coordinator
	Hub         *realtime.Hub

	Metrics *prometheus.Registry
}

// NewRouter assembles the full route table.
func NewRouter(params RouterParams) *chi.Mux {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS(cfg.Realtime))

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(logg, params.DB, params.Redis))

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface: no credentials. Webhooks authenticate by
		// signature, tracking by order number.
		r.Post("/webhooks/stripe", webhooks.Stripe(params.Coordinator, logg))
		r.Get("/track/{orderNumber}", controllers.TrackOrder(params.Orders, logg))

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Post("/checkout", controllers.Checkout(params.Coordinator, logg))

			r.Get("/orders", controllers.ListOrders(params.Orders, logg))
			r.Get("/orders/{id}", controllers.GetOrder(params.Orders, logg))
			r.Post("/orders/{id}/cancel", controllers.CancelOrder(params.Orders, params.Engine, logg))

			r.Post("/payments/intent", controllers.CreateIntent(params.Orders, params.Payments, logg))

			r.Get("/ws", realtimectl.Websocket(params.Hub, params.Orders, cfg.Realtime, logg))

			// Admin surface.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))

				r.Patch("/admin/orders/{id}", controllers.UpdateOrderStatus(params.Engine, logg))
				r.Get("/admin/orders/stats", controllers.OrderStats(params.Orders, logg))

				r.Post("/admin/payments/refund", controllers.RefundOrder(params.Coordinator, logg))

				r.Put("/admin/inventory/{productID}", controllers.SetStock(params.Stock, logg))
				r.Get("/admin/inventory/{productID}", controllers.GetStock(params.Stock, logg))
				r.Get("/admin/inventory/low-stock", controllers.LowStock(params.Stock, logg))
				r.Get("/admin/inventory/report", controllers.StockReport(params.Stock, logg))
			})
		})
	})

	return r
}
