package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RouterConfig holds the router dependencies. Only Manager is required.
type RouterConfig struct {
	Manager *BattleManager
	// Hub serves /ws when set.
	Hub *WebSocketHub

	// RateLimiter wins over RateLimitConfig; with neither the default
	// config is used.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	CORSOrigins []string
	// Registry backs /metrics. A nil registry disables metrics.
	Registry *prometheus.Registry

	Logger         zerolog.Logger
	DisableLogging bool
}

type routerHandlers struct {
	manager *BattleManager
	logger  zerolog.Logger
}

// NewRouter builds the HTTP router. It starts no goroutines and opens no
// listeners, so it is safe to wrap in httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if !cfg.DisableLogging {
		r.Use(hlog.NewHandler(cfg.Logger))
		r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("Request served")
		}))
	}

	var metrics *httpMetrics
	if cfg.Registry != nil {
		metrics = newHTTPMetrics(cfg.Registry, cfg.Manager)
		r.Use(metrics.middleware)
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	if metrics != nil {
		rateLimiter.onReject = func() { metrics.connectionRejected.WithLabelValues("rate_limit").Inc() }
	}

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{
		manager: cfg.Manager,
		logger:  cfg.Logger.With().Str("component", "api").Logger(),
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "battles": cfg.Manager.Count()})
	})

	r.Route("/battles", func(r chi.Router) {
		r.Get("/", h.handleListBattles)
		r.With(rateLimiter.Middleware).Post("/", h.handleCreateBattle)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetBattle)
			r.Delete("/", h.handleDeleteBattle)
			r.Get("/reachable", h.handleReachable)
			r.Get("/save", h.handleLoadSave)

			r.Group(func(r chi.Router) {
				r.Use(rateLimiter.Middleware)
				r.Post("/select", h.handleSelect)
				r.Post("/click", h.handleClick)
				r.Post("/end_turn", h.handleEndTurn)
				r.Post("/commands", h.handleCommands)
				r.Post("/save", h.handleSave)
			})
		})
	})

	if cfg.Hub != nil {
		cfg.Hub.metrics = metrics
		r.Get("/ws", cfg.Hub.HandleWebSocket)
	}
	return r
}
