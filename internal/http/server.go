// Package http serves views, badges and ledger writes over JSON and pushes
// live views over websockets.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"pennypal/internal/cache"
	"pennypal/internal/engine"
	"pennypal/internal/ledger"
	"pennypal/internal/log"
	"pennypal/internal/middleware/ratelimit"
	"pennypal/internal/middleware/security"
	"pennypal/internal/services"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the handlers call.
type Deps struct {
	Engine *engine.Engine
	Ledger ledger.Store
	Badges ledger.BadgeStore
	Writes *services.LedgerService
}

type Options struct {
	Addr          string
	CORSOrigins   []string
	ViewCacheSize int
	ViewCacheTTL  time.Duration
	// RequestsPerMinute limits each client; zero uses the limiter default.
	RequestsPerMinute int
}

type Server struct {
	deps    Deps
	views   *cache.ViewCache[engine.View]
	limiter *ratelimit.Limiter
	ws      *melody.Melody
	router  *gin.Engine
	srv     *http.Server
	logger  *log.Logger
}

func NewServer(deps Deps, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.ViewCacheSize <= 0 {
		opts.ViewCacheSize = 512
	}
	if opts.ViewCacheTTL <= 0 {
		opts.ViewCacheTTL = 5 * time.Minute
	}

	s := &Server{
		deps:    deps,
		views:   cache.NewViewCache[engine.View](opts.ViewCacheSize, opts.ViewCacheTTL),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		logger:  logger.WithComponent(log.ComponentHTTP),
	}
	s.ws = s.newMelody(logger.WithComponent(log.ComponentWebsocket))
	s.router = s.routes(opts)
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.Middleware(s.logger))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(security.Detect(s.logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", log.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{log.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	if len(opts.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.CORSOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.Use(s.limiter.Middleware())
	{
		api.GET("/currencies", s.handleCurrencies)
		api.GET("/users/:user/view", s.handleView)
		api.GET("/users/:user/badges", s.handleBadges)
		api.POST("/users/:user/transactions", s.handleAddTransaction)
		api.PUT("/users/:user/goal", s.handleSaveGoal)
	}
	r.GET("/ws/users/:user", s.handleWebsocket)
	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ViewCache is registered with the cache manager by the caller.
func (s *Server) ViewCache() *cache.ViewCache[engine.View] { return s.views }

// Run serves until ctx is done, then closes every websocket and shuts down.
func (s *Server) Run(ctx context.Context) error {
	go func() { _ = s.limiter.Run(ctx, time.Minute) }()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.ws.Close(); err != nil {
		s.logger.Warn("Failed to close websockets", log.FieldError, err)
	}
	return s.srv.Shutdown(shutdownCtx)
}
