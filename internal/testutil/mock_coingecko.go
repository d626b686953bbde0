// Package testutil provides testing utilities for the CoinGecko cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path prefix the mock serves, mirroring the real API root.
const APIPrefix = "/api/v3"

// Canned upstream bodies for each resource kind.
const (
	TopCoinsBody = `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":65000,"market_cap":1280000000000,"market_cap_rank":1},` +
		`{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3500,"market_cap":420000000000,"market_cap_rank":2}]`
	CoinDetailBody   = `{"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_data":{"current_price":{"usd":65000}}}`
	MarketChartBody  = `{"prices":[[1711843200000,69702.3],[1711929600000,71246.9]],"market_caps":[[1711843200000,1370247487960.1]],"total_volumes":[[1711843200000,16408802301.8]]}`
	TrendingBody     = `{"coins":[{"item":{"id":"pepe","name":"Pepe","symbol":"PEPE","market_cap_rank":24}}],"nfts":[],"categories":[]}`
	GlobalBody       = `{"data":{"active_cryptocurrencies":14000,"markets":1100,"total_market_cap":{"usd":2400000000000},"market_cap_percentage":{"btc":52.1}}}`
	NFTListBody      = `[{"id":"pudgy-penguins","contract_address":"0xbd3531da5cf5857e7cfaa92426877b022e612cf8","name":"Pudgy Penguins","asset_platform_id":"ethereum","symbol":"PPG"}]`
	NFTDetailBody    = `{"id":"pudgy-penguins","name":"Pudgy Penguins","floor_price":{"native_currency":11.2,"usd":38000}}`
	ExchangeListBody = `[{"id":"binance","name":"Binance","year_established":2017,"trust_score":10,"trade_volume_24h_btc":250000}]`
	NewsBody         = `{"data":[{"title":"Bitcoin breaks out","url":"https://example.com/btc","description":"Price action","author":"","updated_at":1711843200,"news_site":"Example News","thumb_2x":""},` +
		`{"title":"ETH upgrade","url":"https://example.com/eth","description":"Upgrade ships","author":"Jane Roe","updated_at":1711929600,"news_site":"Chain Daily","thumb_2x":"https://example.com/eth.png"}]}`
)

// MockResponse defines the behavior for one mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCoinGecko is a configurable mock CoinGecko server for testing.
// Paths are given without the /api/v3 prefix.
type MockCoinGecko struct {
	server *httptest.Server

	mu        sync.RWMutex
	handlers  map[string]http.HandlerFunc
	sequences map[string][]MockResponse
	counts    map[string]int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastQuery         url.Values
}

// NewMockCoinGecko creates a mock server answering every kind with its canned body.
func NewMockCoinGecko() *MockCoinGecko {
	mock := &MockCoinGecko{
		handlers:  make(map[string]http.HandlerFunc),
		sequences: make(map[string][]MockResponse),
		counts:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, APIPrefix)

		mock.mu.Lock()
		mock.RequestCount++
		mock.counts[path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.Query()

		if seq := mock.sequences[path]; len(seq) > 0 {
			resp := seq[0]
			if len(seq) > 1 {
				mock.sequences[path] = seq[1:]
			}
			mock.mu.Unlock()
			writeResponse(w, resp)
			return
		}
		handler, exists := mock.handlers[path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, path)
	}))

	return mock
}

// URL returns the API root of the mock server, suitable as a client base URL.
func (m *MockCoinGecko) URL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockCoinGecko) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCoinGecko) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.counts = make(map[string]int)
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCoinGecko) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCoinGecko) SetResponse(path string, resp MockResponse) {
	m.SetSequence(path, resp)
}

// SetSequence scripts consecutive responses for a path. The last one repeats.
func (m *MockCoinGecko) SetSequence(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[path] = append([]MockResponse(nil), responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCoinGecko) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// PathCount returns the number of requests made to path.
func (m *MockCoinGecko) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// LastHeader returns a header of the most recent request.
func (m *MockCoinGecko) LastHeader(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Get(name)
}

// LastQueryParam returns a query parameter of the most recent request.
func (m *MockCoinGecko) LastQueryParam(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery.Get(name)
}

// defaultHandler serves the canned body for known CoinGecko paths.
func (m *MockCoinGecko) defaultHandler(w http.ResponseWriter, path string) {
	body, ok := DefaultBody(path)
	if !ok {
		writeResponse(w, MockResponse{StatusCode: http.StatusNotFound, Body: `{"error":"Not found"}`})
		return
	}
	writeResponse(w, NewOKResponse(body))
}

// DefaultBody returns the canned body served for path.
func DefaultBody(path string) (string, bool) {
	switch {
	case path == "/coins/markets":
		return TopCoinsBody, true
	case path == "/search/trending":
		return TrendingBody, true
	case path == "/global":
		return GlobalBody, true
	case path == "/nfts/list":
		return NFTListBody, true
	case path == "/exchanges":
		return ExchangeListBody, true
	case path == "/news":
		return NewsBody, true
	case strings.HasPrefix(path, "/coins/") && strings.HasSuffix(path, "/market_chart"):
		return MarketChartBody, true
	case strings.HasPrefix(path, "/coins/"):
		return CoinDetailBody, true
	case strings.HasPrefix(path, "/nfts/"):
		return NFTDetailBody, true
	default:
		return "", false
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// NewOKResponse creates a 200 OK response with body.
func NewOKResponse(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit."}}`,
		Headers:    map[string]string{"Retry-After": "60"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal server error"}`,
	}
}

// NewNotFoundResponse creates a 404 response as CoinGecko sends for unknown ids.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"coin not found"}`,
	}
}
