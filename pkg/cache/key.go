package cache

import (
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/coingecko-cache/pkg/resource"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "cg"

// Key identifies a cached response: a resource kind plus its normalised parameters.
type Key struct {
	Kind   resource.Kind
	Params resource.Params
}

// NewKey normalises params for kind and returns the key. Parameters that do
// not affect the upstream response are dropped; defaults are filled in.
func NewKey(kind resource.Kind, params resource.Params) (Key, error) {
	normalized, err := resource.Normalize(kind, params)
	if err != nil {
		return Key{}, err
	}
	return Key{Kind: kind, Params: normalized}, nil
}

// String generates a deterministic cache key string.
// Format: cg:kind:param1=val1:param2=val2 with parameters sorted by name.
//
// Example:
//
//	cg:coin-market-chart:coinId=bitcoin:currency=usd:days=7
func (k Key) String() string {
	parts := []string{KeyPrefix, string(k.Kind)}

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		parts = append(parts, name+"="+url.QueryEscape(k.Params[name]))
	}

	return strings.Join(parts, ":")
}
