// Package warmup pre-populates the response cache so that the first
// dashboard requests after a start do not all miss at once.
//
// A Warmer runs a small worker pool over a list of requests and calls
// GetOrFetch for each. Entries that are already fresh are not refetched, so
// running it again on a schedule only refreshes what has gone stale.
//
// Example usage:
//
//	w := warmup.New(responses, warmup.DefaultConfig())
//	report, err := w.Warm(ctx, warmup.DefaultRequests())
//
// Requests can be written as strings, e.g. for configuration:
//
//	top-coins?currency=eur&pageSize=50
//	coin-market-chart?coinId=bitcoin&period=30d
//	global-market
package warmup
