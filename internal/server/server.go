package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/brokerage/internal/domain"
	"github.com/alanyoungcy/brokerage/internal/server/handler"
	"github.com/alanyoungcy/brokerage/internal/server/middleware"
	"github.com/alanyoungcy/brokerage/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards /api/admin routes; empty disables the check.
	APIKey     string
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers registered on the mux.
type Handlers struct {
	Health      *handler.HealthHandler
	Orders      *handler.OrderHandler
	Portfolios  *handler.PortfolioHandler
	Instruments *handler.InstrumentHandler
	Admin       *handler.AdminHandler
}

// Server is the brokerage HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in middleware. limiter
// and wsHub may be nil, which disables rate limiting and the /ws stream.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, handlers, limiter, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// NewRouter builds the routed, middleware-wrapped handler.
func NewRouter(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/orders", handlers.Orders.CreateOrder)
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("POST /api/orders/{id}/cancel", handlers.Orders.CancelOrder)

	mux.HandleFunc("GET /api/portfolio/{userId}", handlers.Portfolios.GetPortfolio)

	mux.HandleFunc("GET /api/instruments/search", handlers.Instruments.Search)
	mux.HandleFunc("GET /api/instruments/{id}", handlers.Instruments.GetInstrument)

	if handlers.Admin != nil {
		admin := middleware.Auth(cfg.APIKey)
		mux.Handle("POST /api/admin/archive", admin(http.HandlerFunc(handlers.Admin.ArchiveOrders)))
		mux.Handle("GET /api/admin/archives", admin(http.HandlerFunc(handlers.Admin.ListArchives)))
		mux.Handle("GET /api/admin/archives/{path...}", admin(http.HandlerFunc(handlers.Admin.GetArchive)))
		mux.Handle("GET /api/admin/audit", admin(http.HandlerFunc(handlers.Admin.ListAudit)))
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
