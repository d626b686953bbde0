package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/cache"
	"github.com/Sternrassler/coingecko-cache/pkg/client"
	"github.com/Sternrassler/coingecko-cache/pkg/ratelimit"
	"github.com/Sternrassler/coingecko-cache/pkg/resource"
	"github.com/gin-gonic/gin"
)

// DefaultPeriod is the chart period used when a request names none.
const DefaultPeriod = "7d"

const jsonContentType = "application/json; charset=utf-8"

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatsResponse is the body of /api/cache/stats.
type StatsResponse struct {
	Cache    cache.Stats `json:"cache"`
	Upstream struct {
		Breaker   string            `json:"breaker"`
		RateLimit *ratelimit.Status `json:"rate_limit,omitempty"`
	} `json:"upstream"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleReady(c *gin.Context) {
	if s.ready == nil {
		c.String(http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.ready.Ping(ctx); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Kind: "unavailable"})
		return
	}
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.cache.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	var resp StatsResponse
	resp.Cache = stats
	resp.Upstream.Breaker = "unknown"
	if s.upstream != nil {
		resp.Upstream.Breaker = s.upstream.BreakerState()
		status := s.upstream.RateLimitStatus()
		resp.Upstream.RateLimit = &status
	}
	c.JSON(http.StatusOK, resp)
}

// handleCoin serves /api/coin. An explicit kind wins; otherwise the
// dashboard's original selectors pick the resource.
func (s *Server) handleCoin(c *gin.Context) {
	var kind resource.Kind
	switch {
	case c.Query("kind") != "":
		k, err := resource.ParseKind(c.Query("kind"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		kind = k
	case c.Query("fetchTrendingCoins") == "true":
		kind = resource.KindTrendingCoins
	case c.Query("fetchGlobalMarketData") == "true":
		kind = resource.KindGlobalMarket
	case c.Query("fetchNftById") == "true", c.Query("nftId") != "":
		kind = resource.KindNFTDetail
	case c.Query("coinId") != "":
		kind = resource.KindCoinMarketChart
	default:
		kind = resource.KindTopCoins
	}
	s.serve(c, kind)
}

func (s *Server) handleKind(c *gin.Context) {
	kind, err := resource.ParseKind(c.Param("kind"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.serve(c, kind)
}

func (s *Server) serve(c *gin.Context, kind resource.Kind) {
	params := paramsFromQuery(c)
	if kind == resource.KindCoinMarketChart {
		if params[resource.ParamPeriod] == "" {
			params[resource.ParamPeriod] = DefaultPeriod
		}
	}

	var opts []cache.Option
	if raw, ok := c.GetQuery("ttl"); ok {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			s.writeError(c, fmt.Errorf("%w: ttl %q", resource.ErrInvalidParameter, raw))
			return
		}
		opts = append(opts, cache.WithTTL(ttl))
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	payload, err := s.cache.GetOrFetch(ctx, kind, params, opts...)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, jsonContentType, payload)
}

// paramsFromQuery collects the recognised query parameters. Aliases from
// the upstream API are accepted.
func paramsFromQuery(c *gin.Context) resource.Params {
	params := resource.Params{}
	set := func(name string, keys ...string) {
		for _, k := range keys {
			if v, ok := c.GetQuery(k); ok {
				params[name] = v
				return
			}
		}
	}
	set(resource.ParamCurrency, "currency", "vs_currency")
	set(resource.ParamPageSize, "pageSize", "per_page")
	set(resource.ParamCoinID, "coinId")
	set(resource.ParamPeriod, "period")
	set(resource.ParamNFTID, "nftId")
	return params
}

func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	class := client.Classify(err)
	c.AbortWithStatusJSON(statusFor(err, class), ErrorResponse{
		Error: err.Error(),
		Kind:  string(class),
	})
}

// statusFor maps a cache or client error to the proxy's HTTP status.
func statusFor(err error, class client.ErrorClass) int {
	switch class {
	case client.ErrorClassInvalidParameter:
		return http.StatusBadRequest
	case client.ErrorClassCircuitOpen:
		return http.StatusServiceUnavailable
	case client.ErrorClassUpstream:
		if client.StatusCode(err) == http.StatusNotFound {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}
