package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/carlaherrera/apina-front/internal/http/middleware"
	"github.com/carlaherrera/apina-front/internal/messaging"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	MessagingHandler *messaging.Handler
	MetricsHandler   http.Handler

	// Per-IP limit on the webhook; zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg == nil || cfg.MessagingHandler == nil {
		panic("router: messaging handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.MessagingHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(webhooks chi.Router) {
		if cfg.RateLimitRPS > 0 {
			webhooks.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		webhooks.Post("/webhook", cfg.MessagingHandler.TwilioWebhook)
		webhooks.Route("/messaging", func(r chi.Router) {
			r.Post("/twilio/webhook", cfg.MessagingHandler.TwilioWebhook)
		})
	})

	return r
}
