package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"binanceMarginBot/config"
	"binanceMarginBot/internal/adapters/logger"
	"binanceMarginBot/internal/app"
	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/fetcher"
	"binanceMarginBot/internal/ports"
	"binanceMarginBot/internal/utils"
)

type options struct {
	interval string
	limit    int
	target   string
	symbols  string
	partial  bool
	out      string
}

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	var opts options
	flag.StringVar(&opts.interval, "interval", cfg.Interval, "kline interval")
	flag.IntVar(&opts.limit, "limit", cfg.KlineLimit, "klines per symbol")
	flag.StringVar(&opts.target, "target", "", "keep only the candle opening at this time: RFC3339, epoch ms, or 'last' for the last closed candle")
	flag.StringVar(&opts.symbols, "symbols", strings.Join(cfg.Symbols, ","), "comma separated base assets; empty lists every tradable asset")
	flag.BoolVar(&opts.partial, "partial", cfg.AllowPartial, "write partial results when some symbols fail")
	flag.StringVar(&opts.out, "out", "", "output CSV path (default data/klines_<interval>_<time>.csv)")
	flag.Parse()

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger, opts); err != nil {
		appLogger.Error(context.Background(), err, "Fetch failed")
		log.Fatalf("FATAL: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger ports.Logger, opts options) error {
	step, err := domain.ParseInterval(opts.interval)
	if err != nil {
		return err
	}

	// Alerts are not journaled for one-shot runs.
	pipeline, err := app.NewPipeline(cfg, appLogger, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize fetch pipeline: %w", err)
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pipeline.Close(drainCtx); err != nil {
			appLogger.Error(context.Background(), err, "Failed to drain alerts")
		}
	}()

	baseAssets := splitList(opts.symbols)
	if len(baseAssets) == 0 {
		baseAssets, err = pipeline.Client.TradableBaseAssets(ctx, pipeline.Coordinator.QuoteAsset(), cfg.ExcludedAssets)
		if err != nil {
			return fmt.Errorf("failed to list tradable assets: %w", err)
		}
	}

	serverNow := func() time.Time {
		offset, err := pipeline.Client.ServerTimeOffset(ctx)
		if err != nil {
			appLogger.Warn(ctx, "Failed to synchronize server time, using local clock", map[string]interface{}{"error": err.Error()})
		}
		return time.Now().Add(offset)
	}
	targetOpenTime, err := parseTarget(opts.target, step, serverNow)
	if err != nil {
		return err
	}

	result, err := pipeline.Coordinator.Fetch(ctx, fetcher.FetchRequest{
		Symbols:        baseAssets,
		Interval:       opts.interval,
		Limit:          opts.limit,
		MaxConcurrency: cfg.MaxConcurrency,
		TargetOpenTime: targetOpenTime,
		AllowPartial:   opts.partial,
	})
	var batchErr *fetcher.BatchError
	if errors.As(err, &batchErr) && batchErr.Partial != nil {
		appLogger.Warn(ctx, "Writing partial result", map[string]interface{}{
			"completed": strings.Join(batchErr.Partial.Completed(), ","),
			"missing":   strings.Join(batchErr.Missing, ","),
		})
		result, err = batchErr.Partial, nil
	}
	if err != nil {
		return err
	}

	if empty := symbolsWithoutRecords(result, pipeline.Coordinator.QuoteAsset()); len(empty) > 0 {
		appLogger.Warn(ctx, "Some symbols returned no candles", map[string]interface{}{
			"symbols": strings.Join(empty, ","),
			"target":  opts.target,
		})
	}

	filename := opts.out
	if filename == "" {
		filename = fmt.Sprintf("data/klines_%s_%s.csv", opts.interval, time.Now().UTC().Format("20060102T150405"))
	}
	if err := utils.WriteRecordsToCSV(result.Records, filename); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{
		"filename": filename,
		"records":  len(result.Records),
		"symbols":  len(result.CompletedSymbols),
		"elapsed":  result.Elapsed.String(),
	})
	return nil
}

// symbolsWithoutRecords lists completed base assets that contributed no records,
// e.g. when no candle opened at the requested target.
func symbolsWithoutRecords(result *domain.FetchResult, quoteAsset string) []string {
	bySymbol := result.RecordsBySymbol()
	empty := make([]string, 0)
	for _, base := range result.Completed() {
		if len(bySymbol[base+quoteAsset]) == 0 {
			empty = append(empty, base)
		}
	}
	return empty
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
