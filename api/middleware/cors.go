package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/orderflowhq/orderflow-backend/pkg/config"
)

// CORS applies the configured origin policy. Websocket upgrades carry their
// own origin check; this covers the plain HTTP surface.
func CORS(cfg config.RealtimeConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
