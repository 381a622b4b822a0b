// Package server exposes the risk core over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/riskgate/internal/server/handler"
	"github.com/alanyoungcy/riskgate/internal/server/middleware"
	"github.com/alanyoungcy/riskgate/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards everything but the health check. Empty disables auth.
	APIKey string
	// RateLimitRPS is the per-IP request rate. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Handlers aggregates the HTTP handlers registered on the mux.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Orders    *handler.OrderHandler
	Market    *handler.MarketHandler
	Liquidity *handler.LiquidityHandler
	Accounts  *handler.AccountHandler
	Risk      *handler.RiskHandler
}

// Server is the riskgate API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	limiter    *middleware.IPLimiter
	logger     *slog.Logger
	stop       chan struct{}
}

// NewServer registers every route and wraps the mux in the middleware
// chain: recover, CORS, logging, rate limit, auth.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("POST /api/orders/check", handlers.Orders.CheckOrder)
	mux.HandleFunc("POST /api/market/{symbol}", handlers.Market.UpdateMarketData)

	mux.HandleFunc("GET /api/liquidity/{symbol}", handlers.Liquidity.Score)
	mux.HandleFunc("GET /api/liquidity/{symbol}/slippage", handlers.Liquidity.Slippage)
	mux.HandleFunc("GET /api/liquidity/{symbol}/split", handlers.Liquidity.Split)
	mux.HandleFunc("GET /api/liquidity/{symbol}/impact", handlers.Liquidity.Impact)

	mux.HandleFunc("GET /api/accounts", handlers.Accounts.List)
	mux.HandleFunc("POST /api/accounts/{id}", handlers.Accounts.Register)
	mux.HandleFunc("PUT /api/accounts/{id}", handlers.Accounts.Update)

	mux.HandleFunc("POST /api/trading/pause", handlers.Risk.Pause)
	mux.HandleFunc("POST /api/trading/resume", handlers.Risk.Resume)
	mux.HandleFunc("GET /api/risk/report", handlers.Risk.Report)
	mux.HandleFunc("GET /api/risk/events", handlers.Risk.Events)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var limiter *middleware.IPLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.RateLimit(limiter)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Recover(logger)(h)

	readTimeout, writeTimeout := cfg.ReadTimeout, cfg.WriteTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		handler: h,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "http_server")),
		stop:    make(chan struct{}),
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens until the server is shut down.
func (s *Server) Start() error {
	if s.limiter != nil {
		go s.sweep()
	}
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	close(s.stop)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.limiter.Sweep()
		}
	}
}
