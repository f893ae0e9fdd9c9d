package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/pharmacy-assistant/internal/chat"
	httpmiddleware "github.com/wolfman30/pharmacy-assistant/internal/http/middleware"
	"github.com/wolfman30/pharmacy-assistant/internal/tools"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ToolsHandler       *tools.Handler
	ChatHandler        *chat.Handler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	ToolsJWTSecret     string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Probes and scraping stay outside auth and rate limiting.
	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		if cfg.ToolsHandler != nil {
			api.With(httpmiddleware.BearerJWT(cfg.ToolsJWTSecret)).Method(http.MethodPost, "/tools", cfg.ToolsHandler)
		}
		if cfg.ChatHandler != nil {
			api.Mount("/chat", cfg.ChatHandler.Routes())
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
