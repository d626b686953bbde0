package client

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Sternrassler/coingecko-cache/internal/testutil"
	"github.com/Sternrassler/coingecko-cache/pkg/resource"
)

func TestReshape_News(t *testing.T) {
	payload, err := reshape(resource.KindNews, []byte(testutil.NewsBody))
	if err != nil {
		t.Fatalf("reshape() unexpected error: %v", err)
	}

	var articles []Article
	if err := json.Unmarshal(payload, &articles); err != nil {
		t.Fatalf("payload is not an article list: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len(articles) = %d, want 2", len(articles))
	}

	first := articles[0]
	if first.Author != UnknownAuthor {
		t.Errorf("Author = %q, want %q", first.Author, UnknownAuthor)
	}
	if first.Thumbnail != nil {
		t.Errorf("Thumbnail = %q, want nil", *first.Thumbnail)
	}
	if first.UpdatedAt != "2024-03-31T00:00:00Z" {
		t.Errorf("UpdatedAt = %q, want 2024-03-31T00:00:00Z", first.UpdatedAt)
	}
	if first.NewsSite != "Example News" || first.Title != "Bitcoin breaks out" {
		t.Errorf("article = %+v", first)
	}

	second := articles[1]
	if second.Author != "Jane Roe" {
		t.Errorf("Author = %q, want Jane Roe", second.Author)
	}
	if second.Thumbnail == nil || *second.Thumbnail != "https://example.com/eth.png" {
		t.Errorf("Thumbnail = %v, want the thumb_2x url", second.Thumbnail)
	}
}

func TestReshape_NewsEmptyThumbnailIsNull(t *testing.T) {
	payload, err := reshape(resource.KindNews, []byte(`{"data":[{"title":"t","updated_at":0}]}`))
	if err != nil {
		t.Fatalf("reshape() unexpected error: %v", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	thumb, present := raw[0]["thumbnail"]
	if !present || thumb != nil {
		t.Errorf("thumbnail = %v (present %v), want explicit null", thumb, present)
	}
	if raw[0]["updatedAt"] != "1970-01-01T00:00:00Z" {
		t.Errorf("updatedAt = %v", raw[0]["updatedAt"])
	}
}

func TestReshape_NewsEmptyData(t *testing.T) {
	payload, err := reshape(resource.KindNews, []byte(`{"data":[]}`))
	if err != nil {
		t.Fatalf("reshape() unexpected error: %v", err)
	}
	if string(payload) != "[]" {
		t.Errorf("payload = %s, want []", payload)
	}
}

func TestReshape_NewsBadTimestamp(t *testing.T) {
	_, err := reshape(resource.KindNews, []byte(`{"data":[{"title":"t","updated_at":"yesterday"}]}`))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestReshape_MarketChart(t *testing.T) {
	payload, err := reshape(resource.KindCoinMarketChart, []byte(testutil.MarketChartBody))
	if err != nil {
		t.Fatalf("reshape() unexpected error: %v", err)
	}

	var chart MarketChart
	if err := json.Unmarshal(payload, &chart); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	wantPrices := []PricePoint{
		{Timestamp: 1711843200000, Price: 69702.3},
		{Timestamp: 1711929600000, Price: 71246.9},
	}
	if len(chart.Prices) != len(wantPrices) {
		t.Fatalf("prices = %+v, want %+v", chart.Prices, wantPrices)
	}
	for i, want := range wantPrices {
		if chart.Prices[i] != want {
			t.Errorf("prices[%d] = %+v, want %+v", i, chart.Prices[i], want)
		}
	}
	if len(chart.MarketCaps) != 1 || chart.MarketCaps[0].Value != 1370247487960.1 {
		t.Errorf("marketCaps = %+v", chart.MarketCaps)
	}
	if len(chart.TotalVolumes) != 1 {
		t.Errorf("totalVolumes = %+v", chart.TotalVolumes)
	}
}

func TestReshape_MarketChartBadPair(t *testing.T) {
	_, err := reshape(resource.KindCoinMarketChart, []byte(`{"prices":[[1711843200000]]}`))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestReshape_PassThroughKinds(t *testing.T) {
	tests := []struct {
		kind resource.Kind
		body string
	}{
		{resource.KindTopCoins, testutil.TopCoinsBody},
		{resource.KindCoinDetail, testutil.CoinDetailBody},
		{resource.KindTrendingCoins, testutil.TrendingBody},
		{resource.KindGlobalMarket, testutil.GlobalBody},
		{resource.KindNFTList, testutil.NFTListBody},
		{resource.KindNFTDetail, testutil.NFTDetailBody},
		{resource.KindExchangeList, testutil.ExchangeListBody},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			payload, err := reshape(tt.kind, []byte("\n"+tt.body+"\n"))
			if err != nil {
				t.Fatalf("reshape() unexpected error: %v", err)
			}
			if string(payload) != tt.body {
				t.Errorf("payload = %s, want %s", payload, tt.body)
			}
		})
	}
}

func TestReshape_WrongShape(t *testing.T) {
	tests := []struct {
		kind resource.Kind
		body string
	}{
		{resource.KindTopCoins, `{}`},
		{resource.KindExchangeList, `"binance"`},
		{resource.KindCoinDetail, `[]`},
		{resource.KindTrendingCoins, `null`},
		{resource.KindNews, `[]`},
		{resource.KindGlobalMarket, ``},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if _, err := reshape(tt.kind, []byte(tt.body)); !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("reshape(%q) error = %v, want ErrMalformedResponse", tt.body, err)
			}
		})
	}
}
