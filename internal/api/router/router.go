// Package router wires the HTTP route table.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ixoralabs/booking-assistant/internal/http/handlers"
	httpmiddleware "github.com/ixoralabs/booking-assistant/internal/http/middleware"
	"github.com/ixoralabs/booking-assistant/internal/webchat"
	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *handlers.ConversationHandler
	WebchatHandler      *webchat.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// Requests per second per client IP on conversation routes.
	// Zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			burst := cfg.RateLimitBurst
			if burst <= 0 {
				burst = 10
			}
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, burst))
		}

		v1.Post("/conversations", cfg.ConversationHandler.StartConversation)
		v1.Post("/conversations/{conversationID}/messages", cfg.ConversationHandler.ProcessMessage)
		v1.Get("/conversations/{conversationID}/history", cfg.ConversationHandler.GetHistory)
		v1.Get("/jobs/{jobID}", cfg.ConversationHandler.GetJob)
	})

	if cfg.WebchatHandler != nil {
		r.Route("/webchat", func(wc chi.Router) {
			wc.Get("/ws", cfg.WebchatHandler.HandleWebSocket)
			wc.Post("/message", cfg.WebchatHandler.HandleMessage)
			wc.Get("/history", cfg.WebchatHandler.HandleHistory)
			wc.Get("/widget.js", cfg.WebchatHandler.HandleWidgetJS)
		})
	}

	return r
}
