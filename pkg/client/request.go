package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/coingecko-cache/pkg/resource"
)

// buildURL maps a kind and its normalised params to the upstream URL.
func (c *Client) buildURL(kind resource.Kind, p resource.Params) (string, error) {
	var path string
	q := url.Values{}

	switch kind {
	case resource.KindTopCoins:
		path = "/coins/markets"
		q.Set("vs_currency", p[resource.ParamCurrency])
		q.Set("order", "market_cap_desc")
		q.Set("per_page", p[resource.ParamPageSize])
		q.Set("page", "1")
	case resource.KindCoinDetail:
		path = "/coins/" + p[resource.ParamCoinID]
	case resource.KindCoinMarketChart:
		path = "/coins/" + p[resource.ParamCoinID] + "/market_chart"
		q.Set("vs_currency", p[resource.ParamCurrency])
		q.Set("days", p[resource.ParamDays])
	case resource.KindTrendingCoins:
		path = "/search/trending"
	case resource.KindGlobalMarket:
		path = "/global"
	case resource.KindNFTList:
		path = "/nfts/list"
	case resource.KindNFTDetail:
		path = "/nfts/" + p[resource.ParamNFTID]
	case resource.KindExchangeList:
		path = "/exchanges"
	case resource.KindNews:
		path = "/news"
	default:
		return "", fmt.Errorf("%w: unknown resource kind %q", ErrInvalidParameter, kind)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = q.Encode()
	return u.String(), nil
}
