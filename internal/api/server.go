package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Manager         *BattleManager
	Hub             *WebSocketHub
	RateLimit       RateLimitConfig
	CORSOrigins     []string
	Registry        *prometheus.Registry
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// Server is the HTTP API with its WebSocket feed. Nothing runs in the
// background until Start is called; tests can use Router directly.
type Server struct {
	router      *chi.Mux
	hub         *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	shutdown    time.Duration
	logger      zerolog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit = DefaultRateLimitConfig
	}
	s := &Server{
		hub:         cfg.Hub,
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
		shutdown:    cfg.ShutdownTimeout,
		logger:      cfg.Logger.With().Str("component", "Server").Logger(),
	}
	s.router = NewRouter(RouterConfig{
		Manager:     cfg.Manager,
		Hub:         cfg.Hub,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
		Registry:    cfg.Registry,
		Logger:      cfg.Logger,
	})
	return s
}

func (s *Server) Router() http.Handler { return s.router }

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
// It starts the rate limiter cleanup and the WebSocket hub.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.rateLimiter.Start()
	defer s.rateLimiter.Stop()
	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
