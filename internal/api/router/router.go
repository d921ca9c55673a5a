package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/http/handlers"
	httpmiddleware "github.com/The-Ops-King/closerMetrix-sub003/internal/http/middleware"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	CalendarWebhook    *handlers.CalendarWebhookHandler
	TranscriptWebhook  *handlers.TranscriptWebhookHandler
	AdminCalls         *handlers.AdminCallsHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookRateLimit caps public webhook traffic per IP (req/sec). Zero
	// disables rate limiting.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a new chi router with all routes configured.
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

	// Public endpoints: webhooks, health, metrics.
	r.Group(func(public chi.Router) {
		public.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		public.Route("/webhooks", func(wh chi.Router) {
			if cfg.WebhookRateLimit > 0 {
				wh.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
			}
			if cfg.CalendarWebhook != nil {
				wh.Post("/calendar", cfg.CalendarWebhook.Handle)
			}
			if cfg.TranscriptWebhook != nil {
				wh.Post("/transcripts", cfg.TranscriptWebhook.Handle)
			}
		})
	})

	// Admin routes, protected by the HMAC JWT.
	if cfg.AdminAuthSecret != "" && cfg.AdminCalls != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(requireOrgID)
			admin.Get("/calls", cfg.AdminCalls.ListCalls)
			admin.Get("/calls/{callID}", cfg.AdminCalls.GetCall)
			admin.Get("/audit", cfg.AdminCalls.ListAudit)
			admin.Post("/calls/{callID}/no-recording", cfg.AdminCalls.MarkNoRecording)
			admin.Post("/calls/{callID}/overbooked", cfg.AdminCalls.MarkOverbooked)
		})
	}

	return r
}
