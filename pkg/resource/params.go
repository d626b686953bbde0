package resource

import (
	"fmt"
	"strconv"
	"strings"
)

// Parameter names understood by Normalize.
const (
	ParamCurrency = "currency"
	ParamPageSize = "pageSize"
	ParamCoinID   = "coinId"
	ParamPeriod   = "period"
	ParamDays     = "days"
	ParamNFTID    = "nftId"
)

// Defaults applied when a parameter is omitted.
const (
	DefaultCurrency = "usd"
	DefaultPageSize = 100

	// MaxPageSize is the largest per_page value the provider accepts.
	MaxPageSize = 250
)

// periodDays maps the symbolic chart periods to provider day-counts.
var periodDays = map[string]int{
	"1d":  1,
	"7d":  7,
	"30d": 30,
	"90d": 90,
}

// Params is the named parameter set of a request.
type Params map[string]string

// PeriodDays maps a symbolic period ("1d", "7d", "30d", "90d") to the
// provider's day-count. Unrecognised periods are rejected, never defaulted.
func PeriodDays(period string) (int, error) {
	days, ok := periodDays[strings.ToLower(strings.TrimSpace(period))]
	if !ok {
		return 0, fmt.Errorf("%w: period %q (want 1d, 7d, 30d or 90d)", ErrInvalidParameter, period)
	}
	return days, nil
}

// Normalize validates params for kind and returns the canonical parameter set:
// only parameters that affect the upstream response, defaults filled in,
// identifiers trimmed and lower-cased, and a chart period replaced by its
// day-count under ParamDays. The input map is not modified.
func Normalize(kind Kind, params Params) (Params, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown resource kind %q", ErrInvalidParameter, kind)
	}

	out := Params{}
	switch kind {
	case KindTopCoins:
		out[ParamCurrency] = currency(params)
		size, err := pageSize(params)
		if err != nil {
			return nil, err
		}
		out[ParamPageSize] = strconv.Itoa(size)

	case KindCoinDetail:
		id, err := requiredID(params, ParamCoinID)
		if err != nil {
			return nil, err
		}
		out[ParamCoinID] = id

	case KindCoinMarketChart:
		id, err := requiredID(params, ParamCoinID)
		if err != nil {
			return nil, err
		}
		days, err := chartDays(params)
		if err != nil {
			return nil, err
		}
		out[ParamCoinID] = id
		out[ParamCurrency] = currency(params)
		out[ParamDays] = strconv.Itoa(days)

	case KindNFTDetail:
		id, err := requiredID(params, ParamNFTID)
		if err != nil {
			return nil, err
		}
		out[ParamNFTID] = id

	case KindTrendingCoins, KindGlobalMarket, KindNFTList, KindExchangeList, KindNews:
		// No parameters affect these responses.
	}

	return out, nil
}

func currency(params Params) string {
	c := strings.ToLower(strings.TrimSpace(params[ParamCurrency]))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

func pageSize(params Params) (int, error) {
	raw := strings.TrimSpace(params[ParamPageSize])
	if raw == "" {
		return DefaultPageSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxPageSize {
		return 0, fmt.Errorf("%w: pageSize %q (want 1..%d)", ErrInvalidParameter, raw, MaxPageSize)
	}
	return n, nil
}

func requiredID(params Params, name string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(params[name]))
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameter, name)
	}
	if strings.ContainsAny(id, "/?#") {
		return "", fmt.Errorf("%w: %s %q contains reserved characters", ErrInvalidParameter, name, id)
	}
	return id, nil
}

// chartDays accepts either a symbolic period or an already-mapped day-count,
// so that normalised parameter sets normalise to themselves.
func chartDays(params Params) (int, error) {
	if period, ok := params[ParamPeriod]; ok {
		return PeriodDays(period)
	}
	if raw, ok := params[ParamDays]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil {
			for _, d := range periodDays {
				if d == n {
					return n, nil
				}
			}
		}
		return 0, fmt.Errorf("%w: days %q (want 1, 7, 30 or 90)", ErrInvalidParameter, raw)
	}
	return 0, fmt.Errorf("%w: %s is required", ErrInvalidParameter, ParamPeriod)
}
