package domain

import (
	"sort"
	"time"
)

// KlineRecord is the fixed-shape slice of one candlestick kept by a fetch cycle.
// Prices and volume stay in the exchange's decimal-string form.
type KlineRecord struct {
	OpenTime  int64  // Candle open time in epoch milliseconds
	Open      string // Opening price
	Close     string // Closing price
	Volume    string // Base asset volume
	SymbolTag string // Exchange symbol, base + quote (e.g. "BTCUSDT")
}

// SymbolRequest is one per-symbol request of a fetch cycle.
// Symbol is the correlation key; Index is only a stable sort key.
type SymbolRequest struct {
	Symbol string
	Index  int
	URL    string
}

// FetchResult is the aggregated outcome of one fetch cycle.
type FetchResult struct {
	CycleID          string
	Interval         string
	TargetOpenTime   *int64 // nil for full-history cycles
	Records          []KlineRecord
	CompletedSymbols map[string]struct{}
	RequestedCount   int
	Elapsed          time.Duration
	BudgetExceeded   bool
}

// Complete reports whether every requested symbol completed.
func (r *FetchResult) Complete() bool {
	return r != nil && len(r.CompletedSymbols) == r.RequestedCount
}

// Completed returns the completed symbols in sorted order.
func (r *FetchResult) Completed() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.CompletedSymbols))
	for s := range r.CompletedSymbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// RecordsBySymbol groups records by their symbol tag.
func (r *FetchResult) RecordsBySymbol() map[string][]KlineRecord {
	out := make(map[string][]KlineRecord)
	if r == nil {
		return out
	}
	for _, rec := range r.Records {
		out[rec.SymbolTag] = append(out[rec.SymbolTag], rec)
	}
	return out
}
