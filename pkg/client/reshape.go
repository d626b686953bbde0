package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/coingecko-cache/pkg/resource"
)

// UnknownAuthor replaces an empty news author.
const UnknownAuthor = "Unknown"

// Article is the normalised form of one news item.
type Article struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Author      string  `json:"author"`
	UpdatedAt   string  `json:"updatedAt"`
	NewsSite    string  `json:"newsSite"`
	Thumbnail   *string `json:"thumbnail"`
}

// PricePoint is one sample of the price series.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// ValuePoint is one sample of the market cap or volume series.
type ValuePoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MarketChart is the normalised form of a coin's historical series.
type MarketChart struct {
	Prices       []PricePoint `json:"prices"`
	MarketCaps   []ValuePoint `json:"marketCaps"`
	TotalVolumes []ValuePoint `json:"totalVolumes"`
}

type bodyShape int

const (
	shapeObject bodyShape = iota
	shapeArray
)

func (s bodyShape) String() string {
	if s == shapeArray {
		return "array"
	}
	return "object"
}

var expectedShape = map[resource.Kind]bodyShape{
	resource.KindTopCoins:        shapeArray,
	resource.KindCoinDetail:      shapeObject,
	resource.KindCoinMarketChart: shapeObject,
	resource.KindTrendingCoins:   shapeObject,
	resource.KindGlobalMarket:    shapeObject,
	resource.KindNFTList:         shapeArray,
	resource.KindNFTDetail:       shapeObject,
	resource.KindExchangeList:    shapeArray,
	resource.KindNews:            shapeObject,
}

// reshape validates a success body and converts it to the payload stored
// for kind. News and market charts are normalised; other kinds pass through.
func reshape(kind resource.Kind, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s body is not valid JSON", ErrMalformedResponse, kind)
	}

	want := expectedShape[kind]
	if got, ok := shapeOf(body); !ok || got != want {
		return nil, fmt.Errorf("%w: %s body is not a JSON %s", ErrMalformedResponse, kind, want)
	}

	switch kind {
	case resource.KindNews:
		return reshapeNews(body)
	case resource.KindCoinMarketChart:
		return reshapeMarketChart(body)
	default:
		return json.RawMessage(body), nil
	}
}

func shapeOf(body []byte) (bodyShape, bool) {
	if len(body) == 0 {
		return 0, false
	}
	switch body[0] {
	case '{':
		return shapeObject, true
	case '[':
		return shapeArray, true
	default:
		return 0, false
	}
}

type rawArticle struct {
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Description string      `json:"description"`
	Author      string      `json:"author"`
	UpdatedAt   json.Number `json:"updated_at"`
	NewsSite    string      `json:"news_site"`
	Thumb2x     string      `json:"thumb_2x"`
}

func reshapeNews(body []byte) (json.RawMessage, error) {
	var raw struct {
		Data *[]rawArticle `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: news: %v", ErrMalformedResponse, err)
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("%w: news body has no data array", ErrMalformedResponse)
	}

	articles := make([]Article, 0, len(*raw.Data))
	for i, r := range *raw.Data {
		updated, err := unixToRFC3339(r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: news item %d: %v", ErrMalformedResponse, i, err)
		}

		a := Article{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Author:      r.Author,
			UpdatedAt:   updated,
			NewsSite:    r.NewsSite,
		}
		if strings.TrimSpace(a.Author) == "" {
			a.Author = UnknownAuthor
		}
		if r.Thumb2x != "" {
			thumb := r.Thumb2x
			a.Thumbnail = &thumb
		}
		articles = append(articles, a)
	}

	out, err := json.Marshal(articles)
	if err != nil {
		return nil, fmt.Errorf("marshal news: %w", err)
	}
	return out, nil
}

// unixToRFC3339 converts a seconds timestamp. Empty stays empty.
func unixToRFC3339(n json.Number) (string, error) {
	if n == "" {
		return "", nil
	}
	if secs, err := n.Int64(); err == nil {
		return time.Unix(secs, 0).UTC().Format(time.RFC3339), nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("updated_at %q is not a unix timestamp", n)
	}
	return time.Unix(int64(f), 0).UTC().Format(time.RFC3339), nil
}

func reshapeMarketChart(body []byte) (json.RawMessage, error) {
	var raw struct {
		Prices       *[][]float64 `json:"prices"`
		MarketCaps   [][]float64  `json:"market_caps"`
		TotalVolumes [][]float64  `json:"total_volumes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: market chart: %v", ErrMalformedResponse, err)
	}
	if raw.Prices == nil {
		return nil, fmt.Errorf("%w: market chart has no prices array", ErrMalformedResponse)
	}

	chart := MarketChart{
		Prices:       make([]PricePoint, 0, len(*raw.Prices)),
		MarketCaps:   make([]ValuePoint, 0, len(raw.MarketCaps)),
		TotalVolumes: make([]ValuePoint, 0, len(raw.TotalVolumes)),
	}
	for i, pair := range *raw.Prices {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: prices[%d] has %d elements, want 2", ErrMalformedResponse, i, len(pair))
		}
		chart.Prices = append(chart.Prices, PricePoint{Timestamp: int64(pair[0]), Price: pair[1]})
	}
	for name, series := range map[string]struct {
		in  [][]float64
		out *[]ValuePoint
	}{
		"market_caps":   {raw.MarketCaps, &chart.MarketCaps},
		"total_volumes": {raw.TotalVolumes, &chart.TotalVolumes},
	} {
		for i, pair := range series.in {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: %s[%d] has %d elements, want 2", ErrMalformedResponse, name, i, len(pair))
			}
			*series.out = append(*series.out, ValuePoint{Timestamp: int64(pair[0]), Value: pair[1]})
		}
	}

	out, err := json.Marshal(chart)
	if err != nil {
		return nil, fmt.Errorf("marshal market chart: %w", err)
	}
	return out, nil
}
