package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/quotelab/feedgate/events"
	"github.com/quotelab/feedgate/logger"
	"github.com/quotelab/feedgate/server/endpoint"
	"github.com/quotelab/feedgate/server/middleware"
)

// Server is the HTTP front of the service: a Gin engine mounted on an
// http.ServeMux, wrapped in h2c so HTTP/2 cleartext clients work without
// TLS termination in front.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger
}

// Option customizes a Server at construction time.
type Option func(*Server)

// WithLogger overrides the default component logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a new Server. No middleware is applied yet; call
// ApplyMiddleware after registering routes, or use RegisterDefaultEndpoints
// and RegisterAPI first and apply last.
func New(cfg Config, opts ...Option) *Server {
	switch cfg.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		// Fall back to the global log level when no mode is configured.
		if zerolog.GlobalLevel() <= zerolog.DebugLevel {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	engine := gin.New()
	mux := http.NewServeMux()

	// Gin is the fallback handler on the root mux; extra http.Handlers can
	// be mounted beside it.
	mux.Handle("/", engine)

	s := &Server{
		engine: engine,
		mux:    mux,
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get("server")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.wrapH2C(mux),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return s
}

// wrapH2C enables HTTP/2 cleartext on the given handler.
func (s *Server) wrapH2C(h http.Handler) http.Handler {
	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}
	return h2c.NewHandler(h, h2s)
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handle mounts an http.Handler at the given pattern on the root ServeMux,
// alongside the Gin engine. The pattern must include a trailing slash for
// subtree matches.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", map[string]interface{}{
		"pattern": pattern,
	})
}

// Handler returns the complete request handler including any applied
// middleware. Useful for driving the server through httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ApplyMiddleware wraps the full handler chain with the standard stack:
// recovery, request-ID, CORS, body-size limit, and request logging.
// Applied at the http.Handler level so every mount is covered, not only
// Gin routes.
func (s *Server) ApplyMiddleware() {
	mws := []middleware.Middleware{
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.CORS(&s.config.CORS),
	}
	if s.config.MaxBodySize != "" {
		mws = append(mws, middleware.BodySizeLimit(s.config.MaxBodySize))
	}
	mws = append(mws, middleware.RequestLogger(s.log))

	s.httpServer.Handler = s.wrapH2C(middleware.Chain(mws...)(s.mux))
}

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// RegisterDefaultEndpoints registers the operational endpoints: /health
// (with per-provider detail), the /health/live and /health/ready probes,
// /info, and /metrics.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker, providers endpoint.ReportSource) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker, providers))
	s.engine.GET("/health/live", endpoint.Liveness(serviceName))
	s.engine.GET("/health/ready", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/info", endpoint.Info(serviceName))
	s.engine.GET("/metrics", endpoint.Metrics())
}

// API bundles the collaborators behind the /v1 surface. Nil fields leave
// the corresponding routes unregistered.
type API struct {
	Quotes    endpoint.QuoteService
	Providers endpoint.ProviderAdmin
	Cache     endpoint.CacheClearer
	Events    *events.Hub
}

// RegisterAPI registers the /v1 routes. Read access is public; mutating
// operations (enable/disable, config patch, cache clear) sit behind bearer
// auth and refuse every request when no credentials are configured.
func (s *Server) RegisterAPI(api API) {
	v1 := s.engine.Group("/v1")

	if api.Quotes != nil {
		quotes := endpoint.Quotes(api.Quotes)
		if s.config.RateLimitPerMinute > 0 {
			limiter := middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerMinute: s.config.RateLimitPerMinute,
			})
			v1.GET("/quotes", limiter, quotes)
		} else {
			v1.GET("/quotes", quotes)
		}
	}

	if api.Providers != nil {
		v1.GET("/providers", endpoint.ProviderList(api.Providers))
		v1.GET("/providers/:id", endpoint.ProviderGet(api.Providers))
	}

	if api.Events != nil {
		v1.GET("/events", endpoint.Events(api.Events))
	}

	admin := v1.Group("")
	admin.Use(s.adminAuth())
	if api.Providers != nil {
		admin.POST("/providers/:id/enable", endpoint.ProviderSetEnabled(api.Providers, true))
		admin.POST("/providers/:id/disable", endpoint.ProviderSetEnabled(api.Providers, false))
		admin.PATCH("/providers/:id/config", endpoint.ProviderUpdateConfig(api.Providers))
	}
	if api.Cache != nil {
		admin.DELETE("/cache", endpoint.CacheClear(api.Cache))
	}
}

// adminAuth builds the middleware guarding mutating routes.
func (s *Server) adminAuth() gin.HandlerFunc {
	if !s.config.Auth.Enabled() {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin API disabled: no credentials configured",
			})
		}
	}
	return middleware.Auth(middleware.AuthConfig{
		TokenValidator: s.config.Auth.TokenValidator(),
		Logger:         s.log,
	})
}
