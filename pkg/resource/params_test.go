package resource

import (
	"errors"
	"testing"
)

func TestPeriodDays(t *testing.T) {
	tests := []struct {
		period  string
		want    int
		wantErr bool
	}{
		{period: "1d", want: 1},
		{period: "7d", want: 7},
		{period: "30d", want: 30},
		{period: "90d", want: 90},
		{period: " 7D ", want: 7},
		{period: "2d", wantErr: true},
		{period: "", wantErr: true},
		{period: "365d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := PeriodDays(tt.period)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("PeriodDays(%q) error = %v, want ErrInvalidParameter", tt.period, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PeriodDays(%q) unexpected error: %v", tt.period, err)
			}
			if got != tt.want {
				t.Errorf("PeriodDays(%q) = %d, want %d", tt.period, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		params  Params
		want    Params
		wantErr bool
	}{
		{
			name: "top coins defaults",
			kind: KindTopCoins,
			want: Params{ParamCurrency: "usd", ParamPageSize: "100"},
		},
		{
			name:   "top coins formatting is canonicalised",
			kind:   KindTopCoins,
			params: Params{ParamCurrency: " EUR ", ParamPageSize: "050"},
			want:   Params{ParamCurrency: "eur", ParamPageSize: "50"},
		},
		{
			name:    "top coins page size out of range",
			kind:    KindTopCoins,
			params:  Params{ParamPageSize: "0"},
			wantErr: true,
		},
		{
			name:    "top coins page size not a number",
			kind:    KindTopCoins,
			params:  Params{ParamPageSize: "lots"},
			wantErr: true,
		},
		{
			name:   "chart maps period to days",
			kind:   KindCoinMarketChart,
			params: Params{ParamCoinID: "Bitcoin", ParamPeriod: "30d"},
			want:   Params{ParamCoinID: "bitcoin", ParamCurrency: "usd", ParamDays: "30"},
		},
		{
			name:   "chart accepts normalised days",
			kind:   KindCoinMarketChart,
			params: Params{ParamCoinID: "bitcoin", ParamCurrency: "usd", ParamDays: "30"},
			want:   Params{ParamCoinID: "bitcoin", ParamCurrency: "usd", ParamDays: "30"},
		},
		{
			name:    "chart rejects unknown period",
			kind:    KindCoinMarketChart,
			params:  Params{ParamCoinID: "bitcoin", ParamPeriod: "2d"},
			wantErr: true,
		},
		{
			name:    "chart rejects unknown days",
			kind:    KindCoinMarketChart,
			params:  Params{ParamCoinID: "bitcoin", ParamDays: "2"},
			wantErr: true,
		},
		{
			name:    "chart requires period",
			kind:    KindCoinMarketChart,
			params:  Params{ParamCoinID: "bitcoin"},
			wantErr: true,
		},
		{
			name:    "coin detail requires id",
			kind:    KindCoinDetail,
			params:  Params{},
			wantErr: true,
		},
		{
			name:    "coin detail rejects path characters",
			kind:    KindCoinDetail,
			params:  Params{ParamCoinID: "../global"},
			wantErr: true,
		},
		{
			name:   "nft detail",
			kind:   KindNFTDetail,
			params: Params{ParamNFTID: "pudgy-penguins"},
			want:   Params{ParamNFTID: "pudgy-penguins"},
		},
		{
			name:   "parameterless kind drops extras",
			kind:   KindNews,
			params: Params{ParamCurrency: "usd"},
			want:   Params{},
		},
		{
			name:    "unknown kind",
			kind:    Kind("candles"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.kind, tt.params)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("Normalize() error = %v, want ErrInvalidParameter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Normalize() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Normalize()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := Params{ParamCoinID: " Bitcoin ", ParamPeriod: "7d"}
	if _, err := Normalize(KindCoinMarketChart, in); err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	if in[ParamCoinID] != " Bitcoin " || in[ParamPeriod] != "7d" {
		t.Errorf("input mutated: %v", in)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Errorf("ParseKind(%q) unexpected error: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %q", k, got)
		}
	}

	if _, err := ParseKind("ohlc"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("ParseKind(ohlc) error = %v, want ErrInvalidParameter", err)
	}
}
