package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pedefacil/api/internal/config"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/evolution"
	"github.com/pedefacil/api/internal/handler"
	"github.com/pedefacil/api/internal/mercadopago"
	mw "github.com/pedefacil/api/internal/middleware"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Webhooks and the WebSocket endpoint authenticate on their own terms;
// everything else goes through JWT + tenant scoping.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Shared services
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore)
	projector := service.NewProjector(queries)

	// Webhooks (public; callers are external gateways, not users)
	whatsappHandler := handler.NewWhatsAppHandler(queries, orderService)
	r.Post("/webhooks/whatsapp", whatsappHandler.Receive)

	mpClient := mercadopago.NewClient(cfg.MPBaseURL, cfg.MPAccessToken)
	paymentHandler := handler.NewPaymentWebhookHandler(queries, mpClient)
	r.Post("/webhooks/payments", paymentHandler.Receive)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tenants/{tid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/tenants/{tid}", func(r chi.Router) {
			r.Use(mw.RequireTenant)

			// Orders
			orderHandler := handler.NewOrderHandler(orderService, projector, queries)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Catalog
			productHandler := handler.NewProductHandler(queries)
			r.Route("/products", productHandler.RegisterRoutes)

			// Settings and messaging instance (admin only)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAdmin)
				evoClient := evolution.NewClient(cfg.EvolutionAPIURL, cfg.EvolutionAPIKey)
				tenantHandler := handler.NewTenantHandler(queries, evoClient)
				tenantHandler.RegisterRoutes(r)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
