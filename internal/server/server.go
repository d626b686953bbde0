// Package server exposes the response cache over HTTP for the dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/cache"
	"github.com/Sternrassler/coingecko-cache/pkg/logging"
	"github.com/Sternrassler/coingecko-cache/pkg/metrics"
	"github.com/Sternrassler/coingecko-cache/pkg/ratelimit"
	"github.com/Sternrassler/coingecko-cache/pkg/resource"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ResponseCache is the cache surface the handlers need.
type ResponseCache interface {
	GetOrFetch(ctx context.Context, kind resource.Kind, params resource.Params, opts ...cache.Option) (json.RawMessage, error)
	Stats(ctx context.Context) (cache.Stats, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamReporter exposes the upstream circuit and throttle state for the
// stats endpoint.
type UpstreamReporter interface {
	BreakerState() string
	RateLimitStatus() ratelimit.Status
}

// Config holds server configuration.
type Config struct {
	ListenAddr string

	// RequestTimeout bounds one inbound request, upstream retries included.
	RequestTimeout time.Duration
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":8080",
		RequestTimeout: 60 * time.Second,
	}
}

// Server is the HTTP boundary in front of the response cache.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cache      ResponseCache
	ready      Pinger
	upstream   UpstreamReporter
	config     Config
	logger     zerolog.Logger
}

// New builds the router. ready and upstream may be nil.
func New(cfg Config, responses ResponseCache, ready Pinger, upstream UpstreamReporter) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	logger := logging.NewLogger("http-server")
	engine := gin.New()
	engine.Use(
		Recovery(logger),
		RequestID(),
		RequestLogger(logger),
		CORS(),
	)

	s := &Server{
		engine:   engine,
		cache:    responses,
		ready:    ready,
		upstream: upstream,
		config:   cfg,
		logger:   logger,
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.engine.Group("/api")
	api.GET("/coin", s.handleCoin)
	api.GET("/cache/stats", s.handleStats)
	api.GET("/:kind", s.handleKind)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. A graceful Shutdown
// returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
