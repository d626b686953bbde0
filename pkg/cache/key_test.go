package cache

import (
	"errors"
	"testing"

	"github.com/Sternrassler/coingecko-cache/pkg/resource"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name   string
		kind   resource.Kind
		params resource.Params
		want   string
	}{
		{
			name: "top coins with defaults",
			kind: resource.KindTopCoins,
			want: "cg:top-coins:currency=usd:pageSize=100",
		},
		{
			name:   "chart period mapped to days",
			kind:   resource.KindCoinMarketChart,
			params: resource.Params{resource.ParamCoinID: "bitcoin", resource.ParamPeriod: "7d"},
			want:   "cg:coin-market-chart:coinId=bitcoin:currency=usd:days=7",
		},
		{
			name:   "parameterless kind ignores extras",
			kind:   resource.KindGlobalMarket,
			params: resource.Params{"foo": "bar"},
			want:   "cg:global-market",
		},
		{
			name:   "nft detail",
			kind:   resource.KindNFTDetail,
			params: resource.Params{resource.ParamNFTID: "Pudgy-Penguins"},
			want:   "cg:nft-detail:nftId=pudgy-penguins",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewKey(tt.kind, tt.params)
			if err != nil {
				t.Fatalf("NewKey() unexpected error: %v", err)
			}
			if got := key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_FormattingDoesNotSplitSlots(t *testing.T) {
	tests := []struct {
		name string
		kind resource.Kind
		a, b resource.Params
	}{
		{
			name: "explicit defaults",
			kind: resource.KindTopCoins,
			a:    resource.Params{},
			b:    resource.Params{resource.ParamCurrency: "USD", resource.ParamPageSize: "100"},
		},
		{
			name: "period versus days",
			kind: resource.KindCoinMarketChart,
			a:    resource.Params{resource.ParamCoinID: "bitcoin", resource.ParamPeriod: "30d"},
			b:    resource.Params{resource.ParamCoinID: " Bitcoin ", resource.ParamDays: "30", resource.ParamCurrency: "usd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, err := NewKey(tt.kind, tt.a)
			if err != nil {
				t.Fatalf("NewKey(a) unexpected error: %v", err)
			}
			kb, err := NewKey(tt.kind, tt.b)
			if err != nil {
				t.Fatalf("NewKey(b) unexpected error: %v", err)
			}
			if ka.String() != kb.String() {
				t.Errorf("keys differ: %q vs %q", ka.String(), kb.String())
			}
		})
	}
}

func TestKey_DiscriminatingParamsSplitSlots(t *testing.T) {
	tests := []struct {
		name string
		kind resource.Kind
		a, b resource.Params
	}{
		{
			name: "currency",
			kind: resource.KindTopCoins,
			a:    resource.Params{resource.ParamCurrency: "usd"},
			b:    resource.Params{resource.ParamCurrency: "eur"},
		},
		{
			name: "page size",
			kind: resource.KindTopCoins,
			a:    resource.Params{resource.ParamPageSize: "10"},
			b:    resource.Params{resource.ParamPageSize: "100"},
		},
		{
			name: "period",
			kind: resource.KindCoinMarketChart,
			a:    resource.Params{resource.ParamCoinID: "bitcoin", resource.ParamPeriod: "1d"},
			b:    resource.Params{resource.ParamCoinID: "bitcoin", resource.ParamPeriod: "7d"},
		},
		{
			name: "coin id",
			kind: resource.KindCoinDetail,
			a:    resource.Params{resource.ParamCoinID: "bitcoin"},
			b:    resource.Params{resource.ParamCoinID: "ethereum"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, _ := NewKey(tt.kind, tt.a)
			kb, _ := NewKey(tt.kind, tt.b)
			if ka.String() == kb.String() {
				t.Errorf("keys collide: %q", ka.String())
			}
		})
	}
}

func TestKey_KindsNeverShareSlots(t *testing.T) {
	seen := make(map[string]resource.Kind)
	params := resource.Params{resource.ParamCoinID: "bitcoin", resource.ParamNFTID: "bitcoin", resource.ParamPeriod: "7d"}

	for _, kind := range resource.Kinds() {
		key, err := NewKey(kind, params)
		if err != nil {
			t.Fatalf("NewKey(%s) unexpected error: %v", kind, err)
		}
		if other, ok := seen[key.String()]; ok {
			t.Errorf("%s and %s share key %q", kind, other, key.String())
		}
		seen[key.String()] = kind
	}
}

func TestNewKey_InvalidParameter(t *testing.T) {
	_, err := NewKey(resource.KindCoinMarketChart, resource.Params{resource.ParamCoinID: "bitcoin", resource.ParamPeriod: "2d"})
	if !errors.Is(err, resource.ErrInvalidParameter) {
		t.Errorf("NewKey() error = %v, want ErrInvalidParameter", err)
	}
}

func TestKey_EscapesValues(t *testing.T) {
	key := Key{Kind: resource.KindCoinDetail, Params: resource.Params{resource.ParamCoinID: "a:b=c"}}
	if got, want := key.String(), "cg:coin-detail:coinId=a%3Ab%3Dc"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
