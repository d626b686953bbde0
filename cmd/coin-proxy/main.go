package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/coingecko-cache/internal/config"
	"github.com/Sternrassler/coingecko-cache/internal/server"
	"github.com/Sternrassler/coingecko-cache/pkg/cache"
	"github.com/Sternrassler/coingecko-cache/pkg/client"
	"github.com/Sternrassler/coingecko-cache/pkg/logging"
	"github.com/Sternrassler/coingecko-cache/pkg/warmup"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("coin-proxy failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(cfg.LoggingConfig())
	if cfg.LoggingConfig().Level != logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

// app holds the wired components of one proxy process.
type app struct {
	cfg       *config.Config
	upstream  *client.Client
	responses *cache.ResponseCache
	server    *server.Server
	warmer    *warmup.Warmer
	redis     *redis.Client
}

func newApp(cfg *config.Config) (*app, error) {
	upstream, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create coingecko client: %w", err)
	}

	a := &app{cfg: cfg, upstream: upstream}

	cacheCfg := cfg.ResponseCacheConfig()
	var ready server.Pinger
	if opts := cfg.RedisOptions(); opts != nil {
		a.redis = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := a.redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}

		store := cache.NewRedisStore(a.redis, cfg.Cache.RedisRetention.Std())
		cacheCfg.Store = store
		ready = store
		log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	}

	a.responses, err = cache.New(upstream, cacheCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create response cache: %w", err)
	}

	a.server = server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		RequestTimeout: cfg.Server.RequestTimeout.Std(),
	}, a.responses, ready, upstream)

	a.warmer = warmup.New(a.responses, cfg.WarmerConfig())

	log.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Str("user_agent", cfg.Upstream.UserAgent).
		Bool("api_key", cfg.Upstream.APIKey != "").
		Str("store", a.responses.Store().Name()).
		Dur("ttl", a.responses.TTL()).
		Msg("Coin proxy configured")

	return a, nil
}

// Run serves until ctx ends, then shuts down gracefully. Warm-up runs in
// the background and never blocks serving.
func (a *app) Run(ctx context.Context) error {
	if a.cfg.Warmup.Enabled {
		reqs, err := a.cfg.WarmupRequests()
		if err != nil {
			return err
		}
		go a.warmer.Run(ctx, reqs, a.cfg.Warmup.Interval.Std())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// Close releases the Redis connection pool.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
