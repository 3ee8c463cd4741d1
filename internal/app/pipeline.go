package app

import (
	"context"
	"fmt"

	"binanceMarginBot/config"
	"binanceMarginBot/internal/adapters/binanceclient"
	"binanceMarginBot/internal/adapters/notifier"
	"binanceMarginBot/internal/fetcher"
	"binanceMarginBot/internal/ports"
)

// Pipeline is the wired fetch stack shared by the service and the one-shot CLI.
type Pipeline struct {
	Client      *binanceclient.Client
	Coordinator *fetcher.Coordinator
	Notifier    *notifier.Async
}

// NewPipeline builds transport, executor, aggregator, coordinator and alert delivery from cfg.
// journal may be nil.
func NewPipeline(cfg *config.Config, logger ports.Logger, journal ports.AlertJournal) (*Pipeline, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Pipeline")
	}

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		BaseURL:    cfg.BaseURL,
		UseTestnet: cfg.IsTestnet,
		MarginOnly: cfg.MarginOnly,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Binance client: %w", err)
	}

	transport, err := binanceclient.NewTransport(binanceclient.TransportConfig{
		Logger:            logger,
		MaxConnsPerHost:   cfg.MaxConcurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kline transport: %w", err)
	}

	var sender ports.AlertSender
	if cfg.TelegramBotToken != "" {
		sender, err = notifier.NewTelegram(notifier.TelegramConfig{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
			Logger:   logger,
		})
	} else {
		sender, err = notifier.NewLogSender(logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize alert sender: %w", err)
	}

	dedup, err := notifier.NewDeduplicator(notifier.DedupConfig{
		Sender:   sender,
		Journal:  journal,
		Logger:   logger,
		Cooldown: cfg.AlertCooldown,
		Muted:    cfg.Muted(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize alert de-duplicator: %w", err)
	}
	alerts, err := notifier.NewAsync(notifier.AsyncConfig{Deliverer: dedup, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize alert notifier: %w", err)
	}

	executor, err := fetcher.NewExecutor(fetcher.ExecutorConfig{
		Transport:      transport,
		Notifier:       alerts,
		Logger:         logger,
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		alerts.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize request executor: %w", err)
	}
	aggregator, err := fetcher.NewAggregator(logger)
	if err != nil {
		alerts.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize aggregator: %w", err)
	}
	coordinator, err := fetcher.NewCoordinator(fetcher.CoordinatorConfig{
		Executor:       executor,
		Aggregator:     aggregator,
		Notifier:       alerts,
		Logger:         logger,
		BaseURL:        client.BaseURL(),
		QuoteAsset:     cfg.QuoteAsset,
		MaxConcurrency: cfg.MaxConcurrency,
		LatencyBudget:  cfg.LatencyBudget,
	})
	if err != nil {
		alerts.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize fetch coordinator: %w", err)
	}

	return &Pipeline{Client: client, Coordinator: coordinator, Notifier: alerts}, nil
}

// Close drains pending alerts.
func (p *Pipeline) Close(ctx context.Context) error {
	return p.Notifier.Close(ctx)
}
