package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxConcurrency = 400
	DefaultLatencyBudget  = 9 * time.Second
	DefaultQuoteAsset     = "USDT"
	MaxKlineLimit         = 1000
	klinesPath            = "/api/v3/klines"
)

// CoordinatorConfig holds configuration for the batch fetch coordinator.
type CoordinatorConfig struct {
	Executor       RequestExecutor
	Aggregator     *Aggregator
	Notifier       ports.Notifier
	Logger         ports.Logger
	BaseURL        string
	QuoteAsset     string
	MaxConcurrency int           // Default admission limit, overridable per request
	LatencyBudget  time.Duration // Soft budget for a whole cycle
	Now            func() time.Time
}

// FetchRequest describes one fetch cycle.
type FetchRequest struct {
	Symbols        []string // Base assets, e.g. "BTC"
	Interval       string
	Limit          int
	MaxConcurrency int    // 0 uses the coordinator default
	TargetOpenTime *int64 // nil keeps every returned candle
	AllowPartial   bool   // Attach partial records to a BatchError
}

// Coordinator fans a cycle out to one request per symbol under a concurrency bound
// and assembles the result.
type Coordinator struct {
	executor       RequestExecutor
	aggregator     *Aggregator
	notifier       ports.Notifier
	logger         ports.Logger
	baseURL        string
	quoteAsset     string
	maxConcurrency int
	latencyBudget  time.Duration
	now            func() time.Time
}

// NewCoordinator creates a new batch fetch coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Executor == nil || cfg.Aggregator == nil || cfg.Notifier == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Coordinator")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is required", ports.ErrConfigurationError)
	}
	quote := strings.ToUpper(strings.TrimSpace(cfg.QuoteAsset))
	if quote == "" {
		quote = DefaultQuoteAsset
	}
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = DefaultMaxConcurrency
	}
	budget := cfg.LatencyBudget
	if budget <= 0 {
		budget = DefaultLatencyBudget
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		executor:       cfg.Executor,
		aggregator:     cfg.Aggregator,
		notifier:       cfg.Notifier,
		logger:         cfg.Logger,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		quoteAsset:     quote,
		maxConcurrency: maxConc,
		latencyBudget:  budget,
		now:            now,
	}, nil
}

// QuoteAsset returns the quote asset appended to every symbol.
func (c *Coordinator) QuoteAsset() string {
	return c.quoteAsset
}

// BuildRequests normalizes the symbol set and builds one request per symbol.
func (c *Coordinator) BuildRequests(symbols []string, interval string, limit int) []domain.SymbolRequest {
	normalized := NormalizeSymbols(symbols)
	reqs := make([]domain.SymbolRequest, 0, len(normalized))
	for i, sym := range normalized {
		reqs = append(reqs, domain.SymbolRequest{
			Symbol: sym,
			Index:  i,
			URL: fmt.Sprintf("%s%s?symbol=%s&interval=%s&limit=%d",
				c.baseURL, klinesPath, url.QueryEscape(sym+c.quoteAsset), url.QueryEscape(interval), limit),
		})
	}
	return reqs
}

// NormalizeSymbols trims, upper-cases, de-duplicates and sorts base assets.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Fetch runs one fetch cycle. A complete cycle returns the result with a nil error, even
// when it overran the latency budget. An incomplete cycle returns a *BatchError.
func (c *Coordinator) Fetch(ctx context.Context, req FetchRequest) (*domain.FetchResult, error) {
	start := c.now()

	if strings.TrimSpace(req.Interval) == "" {
		return nil, fmt.Errorf("%w: interval is required", ports.ErrInvalidRequest)
	}
	if req.Limit <= 0 || req.Limit > MaxKlineLimit {
		return nil, fmt.Errorf("%w: limit %d out of range 1..%d", ports.ErrInvalidRequest, req.Limit, MaxKlineLimit)
	}
	requests := c.BuildRequests(req.Symbols, req.Interval, req.Limit)
	if len(requests) == 0 {
		c.logger.Warn(ctx, "Fetch cycle has no symbols")
		return &domain.FetchResult{
			CycleID:          uuid.NewString(),
			Interval:         req.Interval,
			TargetOpenTime:   req.TargetOpenTime,
			Records:          []domain.KlineRecord{},
			CompletedSymbols: map[string]struct{}{},
			Elapsed:          c.now().Sub(start),
		}, nil
	}

	maxConc := req.MaxConcurrency
	if maxConc <= 0 {
		maxConc = c.maxConcurrency
	}

	cycleID := uuid.NewString()
	c.logger.Info(ctx, "Starting fetch cycle", map[string]interface{}{
		"cycleID":        cycleID,
		"symbols":        len(requests),
		"interval":       req.Interval,
		"limit":          req.Limit,
		"maxConcurrency": maxConc,
		"targeted":       req.TargetOpenTime != nil,
	})

	acc := newAccumulator(len(requests))
	sem := semaphore.NewWeighted(int64(maxConc))
	var g errgroup.Group

	for _, r := range requests {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		r := r
		g.Go(func() error {
			defer sem.Release(1)
			outcome := c.executor.Execute(ctx, r)
			if !outcome.Succeeded() {
				return nil
			}
			records := c.aggregator.Accept(ctx, r.Symbol+c.quoteAsset, outcome.Payload, req.TargetOpenTime)
			acc.add(r, records)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := c.now().Sub(start)

	if err := ctx.Err(); err != nil {
		c.logger.Warn(ctx, "Fetch cycle canceled", map[string]interface{}{"cycleID": cycleID, "elapsed": elapsed.String()})
		return nil, fmt.Errorf("fetch cycle %s: %w: %w", cycleID, ports.ErrContextCanceled, err)
	}

	result := acc.result(cycleID, req, len(requests), elapsed)
	result.BudgetExceeded = elapsed > c.latencyBudget

	c.logger.Info(ctx, "Fetch cycle settled", map[string]interface{}{
		"cycleID":   cycleID,
		"requested": result.RequestedCount,
		"completed": len(result.CompletedSymbols),
		"records":   len(result.Records),
		"elapsed":   elapsed.String(),
	})

	if !result.Complete() {
		missing := missingSymbols(requests, result.CompletedSymbols)
		batchErr := &BatchError{
			CycleID:        cycleID,
			Requested:      result.RequestedCount,
			Completed:      len(result.CompletedSymbols),
			Missing:        missing,
			Elapsed:        elapsed,
			BudgetExceeded: result.BudgetExceeded,
		}
		if req.AllowPartial {
			batchErr.Partial = result
		}
		c.logger.Warn(ctx, "Fetch cycle incomplete", map[string]interface{}{
			"cycleID": cycleID,
			"missing": strings.Join(missing, ","),
		})
		c.notifier.Notify(ports.AlertIncompleteBatch, batchErr.Error())
		return nil, batchErr
	}

	if result.BudgetExceeded {
		c.logger.Warn(ctx, "Fetch cycle exceeded latency budget", map[string]interface{}{
			"cycleID": cycleID,
			"elapsed": elapsed.String(),
			"budget":  c.latencyBudget.String(),
		})
		c.notifier.Notify(ports.AlertBudgetExceeded, fmt.Sprintf("cycle %s took %.2fs (budget %.0fs)",
			cycleID, elapsed.Seconds(), c.latencyBudget.Seconds()))
	}
	return result, nil
}

func missingSymbols(requests []domain.SymbolRequest, completed map[string]struct{}) []string {
	missing := make([]string, 0)
	for _, r := range requests {
		if _, done := completed[r.Symbol]; !done {
			missing = append(missing, r.Symbol)
		}
	}
	return missing
}

type indexedRecord struct {
	index  int
	record domain.KlineRecord
}

// accumulator collects aggregated records from concurrent requests.
type accumulator struct {
	mu        sync.Mutex
	records   []indexedRecord
	completed map[string]struct{}
}

func newAccumulator(size int) *accumulator {
	return &accumulator{completed: make(map[string]struct{}, size)}
}

func (a *accumulator) add(req domain.SymbolRequest, records []domain.KlineRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed[req.Symbol] = struct{}{}
	for _, rec := range records {
		a.records = append(a.records, indexedRecord{index: req.Index, record: rec})
	}
}

func (a *accumulator) result(cycleID string, req FetchRequest, requested int, elapsed time.Duration) *domain.FetchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	sort.SliceStable(a.records, func(i, j int) bool {
		if a.records[i].index != a.records[j].index {
			return a.records[i].index < a.records[j].index
		}
		return a.records[i].record.OpenTime < a.records[j].record.OpenTime
	})
	records := make([]domain.KlineRecord, 0, len(a.records))
	for _, r := range a.records {
		records = append(records, r.record)
	}
	completed := make(map[string]struct{}, len(a.completed))
	for s := range a.completed {
		completed[s] = struct{}{}
	}

	return &domain.FetchResult{
		CycleID:          cycleID,
		Interval:         req.Interval,
		TargetOpenTime:   req.TargetOpenTime,
		Records:          records,
		CompletedSymbols: completed,
		RequestedCount:   requested,
		Elapsed:          elapsed,
	}
}
