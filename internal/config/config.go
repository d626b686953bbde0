// Package config loads the proxy configuration from an optional YAML file,
// an optional .env file and the process environment, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/cache"
	"github.com/Sternrassler/coingecko-cache/pkg/client"
	"github.com/Sternrassler/coingecko-cache/pkg/logging"
	"github.com/Sternrassler/coingecko-cache/pkg/warmup"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the complete proxy configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Warmup   WarmupConfig   `yaml:"warmup"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	RequestTimeout  Duration `yaml:"request_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig configures the CoinGecko client.
type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           Duration      `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Retry             RetryConfig   `yaml:"retry"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// RetryConfig configures 429 backoff.
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	BaseDelay  Duration `yaml:"base_delay"`
	MaxDelay   Duration `yaml:"max_delay"`
}

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	Enabled          bool     `yaml:"enabled"`
	FailureThreshold uint32   `yaml:"failure_threshold"`
	OpenTimeout      Duration `yaml:"open_timeout"`
}

// CacheConfig configures the response cache and its store.
type CacheConfig struct {
	TTL           Duration `yaml:"ttl"`
	DedupInFlight bool     `yaml:"dedup_in_flight"`

	// RedisAddr selects the Redis store; empty keeps entries in memory.
	RedisAddr      string   `yaml:"redis_addr"`
	RedisPassword  string   `yaml:"redis_password"`
	RedisDB        int      `yaml:"redis_db"`
	RedisRetention Duration `yaml:"redis_retention"`
}

// WarmupConfig configures startup and periodic cache warm-up.
type WarmupConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Requests    []string `yaml:"requests"`
	Interval    Duration `yaml:"interval"`
	Concurrency int      `yaml:"concurrency"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	retry := client.DefaultRetryConfig()
	upstream := client.DefaultConfig("coingecko-cache/0.1.0")

	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			RequestTimeout:  Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:           upstream.BaseURL,
			UserAgent:         upstream.UserAgent,
			Timeout:           Duration(upstream.Timeout),
			RequestsPerMinute: upstream.RequestsPerMinute,
			Retry: RetryConfig{
				MaxRetries: retry.MaxRetries,
				BaseDelay:  Duration(retry.BaseDelay),
				MaxDelay:   Duration(retry.MaxDelay),
			},
			Breaker: BreakerConfig{
				Enabled:          upstream.Breaker.Enabled,
				FailureThreshold: upstream.Breaker.FailureThreshold,
				OpenTimeout:      Duration(upstream.Breaker.OpenTimeout),
			},
		},
		Cache: CacheConfig{
			TTL:           Duration(cache.DefaultTTL),
			DedupInFlight: true,
		},
		Warmup: WarmupConfig{
			Enabled:     true,
			Concurrency: warmup.DefaultConfig().MaxConcurrency,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load builds the configuration. The YAML file named by CONFIG_FILE is
// applied over the defaults, then variables from the given .env files
// (".env" when none are given, missing files ignored), then the process
// environment. The result is validated.
func Load(envFiles ...string) (*Config, error) {
	dotenv, err := readDotenv(envFiles)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	cfg := Default()
	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readDotenv(files []string) (map[string]string, error) {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}

	out := map[string]string{}
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", f, err)
		}
		for k, v := range vars {
			if _, seen := out[k]; !seen {
				out[k] = v
			}
		}
	}
	return out, nil
}

// mergeFile decodes a YAML file over the current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = Duration(d)
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.ListenAddr = ":" + strings.TrimSpace(port)
	}
	str("LISTEN_ADDR", &c.Server.ListenAddr)
	duration("REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	duration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	str("COINGECKO_BASE_URL", &c.Upstream.BaseURL)
	str("COINGECKO_API_KEY", &c.Upstream.APIKey)
	str("USER_AGENT", &c.Upstream.UserAgent)
	duration("UPSTREAM_TIMEOUT", &c.Upstream.Timeout)
	integer("REQUESTS_PER_MINUTE", &c.Upstream.RequestsPerMinute)
	integer("RETRY_MAX", &c.Upstream.Retry.MaxRetries)
	duration("RETRY_BASE_DELAY", &c.Upstream.Retry.BaseDelay)
	duration("RETRY_MAX_DELAY", &c.Upstream.Retry.MaxDelay)
	boolean("BREAKER_ENABLED", &c.Upstream.Breaker.Enabled)
	if v, ok := lookup("BREAKER_FAILURE_THRESHOLD"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("BREAKER_FAILURE_THRESHOLD: %w", err))
		} else {
			c.Upstream.Breaker.FailureThreshold = uint32(n)
		}
	}
	duration("BREAKER_OPEN_TIMEOUT", &c.Upstream.Breaker.OpenTimeout)

	duration("CACHE_TTL", &c.Cache.TTL)
	boolean("CACHE_DEDUP", &c.Cache.DedupInFlight)
	str("REDIS_URL", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	integer("REDIS_DB", &c.Cache.RedisDB)
	duration("REDIS_RETENTION", &c.Cache.RedisRetention)

	boolean("WARMUP_ENABLED", &c.Warmup.Enabled)
	if v, ok := lookup("WARMUP_REQUESTS"); ok {
		c.Warmup.Requests = strings.Split(v, ",")
	}
	duration("WARMUP_INTERVAL", &c.Warmup.Interval)
	integer("WARMUP_CONCURRENCY", &c.Warmup.Concurrency)

	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_PRETTY", &c.Log.Pretty)

	return errors.Join(errs...)
}

// Validate checks the configuration for values the components would reject.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout must be > 0 (got %s)", c.Server.RequestTimeout))
	}

	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url %q is not an absolute URL", c.Upstream.BaseURL))
	}
	if c.Upstream.UserAgent == "" {
		errs = append(errs, errors.New("upstream.user_agent is required"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must be > 0 (got %s)", c.Upstream.Timeout))
	}
	if c.Upstream.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("upstream.requests_per_minute must be >= 0 (got %d)", c.Upstream.RequestsPerMinute))
	}
	if err := c.ClientConfig().Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("upstream.retry: %w", err))
	}
	if c.Upstream.Breaker.Enabled && c.Upstream.Breaker.FailureThreshold == 0 {
		errs = append(errs, errors.New("upstream.breaker.failure_threshold must be > 0"))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be > 0 (got %s)", c.Cache.TTL))
	}
	if c.Cache.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("cache.redis_db must be >= 0 (got %d)", c.Cache.RedisDB))
	}
	if c.Cache.RedisRetention < 0 {
		errs = append(errs, fmt.Errorf("cache.redis_retention must be >= 0 (got %s)", c.Cache.RedisRetention))
	}

	if c.Warmup.Interval < 0 {
		errs = append(errs, fmt.Errorf("warmup.interval must be >= 0 (got %s)", c.Warmup.Interval))
	}
	if _, err := c.WarmupRequests(); err != nil {
		errs = append(errs, fmt.Errorf("warmup.requests: %w", err))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// ClientConfig converts the upstream section for client.New.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.Upstream.UserAgent)
	cfg.BaseURL = c.Upstream.BaseURL
	cfg.APIKey = c.Upstream.APIKey
	cfg.Timeout = c.Upstream.Timeout.Std()
	cfg.RequestsPerMinute = c.Upstream.RequestsPerMinute
	cfg.Retry.MaxRetries = c.Upstream.Retry.MaxRetries
	cfg.Retry.BaseDelay = c.Upstream.Retry.BaseDelay.Std()
	cfg.Retry.MaxDelay = c.Upstream.Retry.MaxDelay.Std()
	cfg.Breaker = client.BreakerConfig{
		Enabled:          c.Upstream.Breaker.Enabled,
		FailureThreshold: c.Upstream.Breaker.FailureThreshold,
		OpenTimeout:      c.Upstream.Breaker.OpenTimeout.Std(),
	}
	return cfg
}

// ResponseCacheConfig converts the cache section for cache.New. The store is left
// for the caller to attach.
func (c *Config) ResponseCacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.TTL = c.Cache.TTL.Std()
	cfg.DedupInFlight = c.Cache.DedupInFlight
	cfg.FetchTimeout = c.Server.RequestTimeout.Std()
	return cfg
}

// RedisOptions returns connection options, or nil when Redis is not configured.
func (c *Config) RedisOptions() *redis.Options {
	if c.Cache.RedisAddr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Cache.RedisAddr,
		Password: c.Cache.RedisPassword,
		DB:       c.Cache.RedisDB,
	}
}

// WarmupRequests parses the configured list, falling back to
// warmup.DefaultRequests when it is empty.
func (c *Config) WarmupRequests() ([]warmup.Request, error) {
	reqs, err := warmup.ParseRequests(c.Warmup.Requests)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return warmup.DefaultRequests(), nil
	}
	return reqs, nil
}

// WarmerConfig converts the warm-up section.
func (c *Config) WarmerConfig() warmup.Config {
	cfg := warmup.DefaultConfig()
	if c.Warmup.Concurrency > 0 {
		cfg.MaxConcurrency = c.Warmup.Concurrency
	}
	return cfg
}

// LoggingConfig converts the log section.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Pretty = c.Log.Pretty
	return cfg
}
