// Package resource describes the CoinGecko resource kinds served by the proxy
// and normalises the parameters that select a single upstream response.
package resource

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidParameter indicates a caller supplied a parameter value outside
// the recognised set (unknown kind, unknown period, missing id, ...).
var ErrInvalidParameter = errors.New("invalid parameter")

// Kind is one of the fixed categories of upstream data.
type Kind string

const (
	// KindTopCoins lists coins ranked by market capitalisation.
	KindTopCoins Kind = "top-coins"

	// KindCoinDetail is the full metadata and market snapshot of one coin.
	KindCoinDetail Kind = "coin-detail"

	// KindCoinMarketChart is the price time-series of one coin.
	KindCoinMarketChart Kind = "coin-market-chart"

	// KindTrendingCoins is the provider-curated trending list.
	KindTrendingCoins Kind = "trending-coins"

	// KindGlobalMarket holds aggregate market statistics.
	KindGlobalMarket Kind = "global-market"

	// KindNFTList is the catalogue of NFT collections.
	KindNFTList Kind = "nft-list"

	// KindNFTDetail is the metadata of one NFT collection.
	KindNFTDetail Kind = "nft-detail"

	// KindExchangeList is the catalogue of exchanges.
	KindExchangeList Kind = "exchange-list"

	// KindNews is the normalised news article list.
	KindNews Kind = "news"
)

var allKinds = []Kind{
	KindTopCoins,
	KindCoinDetail,
	KindCoinMarketChart,
	KindTrendingCoins,
	KindGlobalMarket,
	KindNFTList,
	KindNFTDetail,
	KindExchangeList,
	KindNews,
}

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is part of the closed enumeration.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a selector string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		names := make([]string, 0, len(allKinds))
		for _, known := range Kinds() {
			names = append(names, string(known))
		}
		sort.Strings(names)
		return "", fmt.Errorf("%w: unknown resource kind %q (want one of %v)", ErrInvalidParameter, s, names)
	}
	return k, nil
}
