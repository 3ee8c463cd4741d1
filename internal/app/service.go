package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"binanceMarginBot/config"
	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/fetcher"
	"binanceMarginBot/internal/ports"

	"github.com/google/uuid"
)

const (
	incrementalLimit  = 2 // Latest closed candle plus the one still forming
	reportSaveTimeout = 5 * time.Second
)

// Fetcher runs one batch fetch cycle.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.FetchRequest) (*domain.FetchResult, error)
}

// KlineService keeps the kline snapshot of the symbol universe fresh: one full-history
// cycle, then one incremental cycle per interval boundary.
type KlineService struct {
	cfg     *config.Config
	logger  ports.Logger
	market  ports.MarketMetadata
	fetcher Fetcher
	cycles  ports.CycleRepository
	step    time.Duration
	now     func() time.Time

	// State fields
	mu      sync.RWMutex // Protects access to state fields below
	symbols []string
	offset  time.Duration // Server time minus local time
	history *domain.FetchResult
	latest  *domain.FetchResult
}

// NewKlineService creates a new application service instance.
func NewKlineService(
	cfg *config.Config,
	logger ports.Logger,
	market ports.MarketMetadata,
	f Fetcher,
	cycles ports.CycleRepository,
) (*KlineService, error) {
	if cfg == nil || logger == nil || market == nil || f == nil || cycles == nil {
		return nil, fmt.Errorf("missing required dependencies for KlineService")
	}
	step, err := domain.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}
	if cfg.KlineLimit <= 0 {
		return nil, fmt.Errorf("configuration KlineLimit must be positive")
	}

	return &KlineService{
		cfg:     cfg,
		logger:  logger,
		market:  market,
		fetcher: f,
		cycles:  cycles,
		step:    step,
		now:     time.Now,
	}, nil
}

// Start runs the service until SIGINT/SIGTERM or ctx cancellation.
func (s *KlineService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Kline Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.Run(ctx)
}

// Run initializes the service and loops cycles on interval boundaries until ctx is done.
func (s *KlineService) Run(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, err, "Fetch cycle failed, retrying next interval")
		}

		wait := s.untilNextCycle()
		s.logger.Debug(ctx, "Waiting for next interval", map[string]interface{}{"wait": wait.String()})
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info(ctx, "Kline Service stopped.")
			return nil
		case <-timer.C:
		}
	}
}

// Init synchronizes the server clock offset and resolves the symbol universe.
func (s *KlineService) Init(ctx context.Context) error {
	op := "Init"

	offset, err := s.market.ServerTimeOffset(ctx)
	if err != nil {
		s.logger.Warn(ctx, op+": Failed to synchronize server time, using local clock", map[string]interface{}{"error": err.Error()})
		offset = 0
	} else {
		s.logger.Info(ctx, op+": Server time synchronized", map[string]interface{}{"offset": offset.String()})
	}

	symbols, err := s.resolveSymbols(ctx)
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to resolve symbol universe")
		return fmt.Errorf("failed to resolve symbols: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("%s failed: %w", op, ports.ErrNoSymbols)
	}

	s.mu.Lock()
	s.offset = offset
	s.symbols = symbols
	s.mu.Unlock()

	s.logger.Info(ctx, op+": Symbol universe resolved", map[string]interface{}{"count": len(symbols), "quote": s.cfg.QuoteAsset})
	return nil
}

func (s *KlineService) resolveSymbols(ctx context.Context) ([]string, error) {
	if len(s.cfg.Symbols) == 0 {
		return s.market.TradableBaseAssets(ctx, s.cfg.QuoteAsset, s.cfg.ExcludedAssets)
	}
	excluded := make(map[string]struct{}, len(s.cfg.ExcludedAssets))
	for _, e := range s.cfg.ExcludedAssets {
		excluded[strings.ToUpper(strings.TrimSpace(e))] = struct{}{}
	}
	out := make([]string, 0, len(s.cfg.Symbols))
	for _, sym := range fetcher.NormalizeSymbols(s.cfg.Symbols) {
		if _, skip := excluded[sym]; !skip {
			out = append(out, sym)
		}
	}
	return out, nil
}

// RunCycle runs a full-history cycle until one has succeeded, incremental cycles afterwards.
func (s *KlineService) RunCycle(ctx context.Context) (*domain.FetchResult, error) {
	if s.History() == nil {
		return s.runCycle(ctx, s.cfg.KlineLimit, nil, true)
	}
	target := domain.LastClosedOpenTime(s.serverNow(), s.step)
	return s.runCycle(ctx, incrementalLimit, &target, false)
}

func (s *KlineService) runCycle(ctx context.Context, limit int, target *int64, full bool) (*domain.FetchResult, error) {
	symbols := s.Symbols()
	req := fetcher.FetchRequest{
		Symbols:        symbols,
		Interval:       s.cfg.Interval,
		Limit:          limit,
		MaxConcurrency: s.cfg.MaxConcurrency,
		TargetOpenTime: target,
		AllowPartial:   s.cfg.AllowPartial,
	}

	started := s.now()
	result, err := s.fetcher.Fetch(ctx, req)
	report := &domain.CycleReport{
		StartedAt:      started,
		Interval:       req.Interval,
		Limit:          limit,
		TargetOpenTime: target,
		Requested:      len(symbols),
	}

	var batchErr *fetcher.BatchError
	switch {
	case err == nil:
		report.ID = result.CycleID
		report.Requested = result.RequestedCount
		report.Completed = len(result.CompletedSymbols)
		report.Records = len(result.Records)
		report.Elapsed = result.Elapsed
		report.BudgetExceeded = result.BudgetExceeded
		report.Status = domain.CycleComplete
	case errors.As(err, &batchErr):
		report.ID = batchErr.CycleID
		report.Requested = batchErr.Requested
		report.Completed = batchErr.Completed
		report.Elapsed = batchErr.Elapsed
		report.BudgetExceeded = batchErr.BudgetExceeded
		report.Missing = batchErr.Missing
		report.Status = domain.CycleIncomplete
		if batchErr.Partial != nil {
			report.Records = len(batchErr.Partial.Records)
		}
	case errors.Is(err, ports.ErrContextCanceled):
		report.ID = uuid.NewString()
		report.Elapsed = s.now().Sub(started)
		report.Status = domain.CycleCanceled
	default:
		report.ID = uuid.NewString()
		report.Elapsed = s.now().Sub(started)
		report.Status = domain.CycleError
	}
	s.saveReport(ctx, report)

	if err != nil {
		if batchErr != nil && batchErr.Partial != nil {
			s.mu.Lock()
			s.latest = batchErr.Partial
			s.mu.Unlock()
		}
		return nil, err
	}

	s.mu.Lock()
	s.latest = result
	if full {
		s.history = result
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "Kline snapshot updated", map[string]interface{}{
		"cycleID": result.CycleID,
		"full":    full,
		"records": len(result.Records),
	})
	return result, nil
}

func (s *KlineService) saveReport(ctx context.Context, report *domain.CycleReport) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportSaveTimeout)
	defer cancel()
	if err := s.cycles.SaveCycle(saveCtx, report); err != nil {
		s.logger.Error(ctx, err, "Failed to save cycle report", map[string]interface{}{"cycleID": report.ID})
	}
}

// untilNextCycle returns the wait until the next interval boundary plus the settle delay.
func (s *KlineService) untilNextCycle() time.Duration {
	serverNow := s.serverNow()
	next := domain.NextBoundary(serverNow, s.step).Add(s.cfg.SettleDelay)
	return next.Sub(serverNow)
}

func (s *KlineService) serverNow() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Add(s.offset)
}

// Symbols returns the resolved symbol universe.
func (s *KlineService) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.symbols...)
}

// Latest returns the most recent cycle result, partial ones included when allowed, or nil.
func (s *KlineService) Latest() *domain.FetchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// History returns the full-history cycle result, or nil before the first one succeeds.
func (s *KlineService) History() *domain.FetchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}
