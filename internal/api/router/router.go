package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/chatcommerce/internal/http/middleware"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// WebhookHandler serves the WhatsApp callback endpoint.
type WebhookHandler interface {
	Verify(w http.ResponseWriter, r *http.Request)
	Receive(w http.ResponseWriter, r *http.Request)
}

// TriggersHandler serves the admin keyword trigger endpoints.
type TriggersHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Put(w http.ResponseWriter, r *http.Request)
}

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Webhook         WebhookHandler
	Triggers        TriggersHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
	RateLimitRPS    float64
	RateLimitBurst  int

	// HealthChecks are pinged by /health; any failure answers 503.
	HealthChecks map[string]Pinger
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	if cfg.Webhook == nil {
		panic("router: webhook handler required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/webhooks/whatsapp", func(wh chi.Router) {
		if cfg.RateLimitRPS > 0 {
			wh.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		wh.Get("/", cfg.Webhook.Verify)
		wh.Post("/", cfg.Webhook.Receive)
	})

	if cfg.Triggers != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/businesses/{ownerID}", func(owner chi.Router) {
				owner.Use(httpmiddleware.OwnerScope)
				owner.Get("/triggers", cfg.Triggers.List)
				owner.Put("/triggers", cfg.Triggers.Put)
			})
		})
	}
	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				resp[name] = "unavailable"
				resp["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
