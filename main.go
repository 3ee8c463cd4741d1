package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"

	"binanceMarginBot/config"
	"binanceMarginBot/internal/adapters/logger"
	"binanceMarginBot/internal/adapters/sqlite"
	"binanceMarginBot/internal/app"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (cycle reports and alert journal)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize the fetch pipeline (exchange client, transport, alerts)
	pipeline, err := app.NewPipeline(cfg, appLogger, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize fetch pipeline")
		log.Fatalf("FATAL: Failed to initialize fetch pipeline: %v", err)
	}
	// Runs before repo.Close so the journal still accepts drained alerts.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pipeline.Close(ctx); err != nil {
			appLogger.Error(context.Background(), err, "Error draining alert queue")
		}
	}()
	appLogger.Info(context.Background(), "Fetch pipeline initialized")

	// 5. Initialize Application Service
	klineService, err := app.NewKlineService(cfg, appLogger, pipeline.Client, pipeline.Coordinator, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize kline service")
		log.Fatalf("FATAL: Failed to initialize kline service: %v", err)
	}
	appLogger.Info(context.Background(), "Kline service initialized")

	// 6. Start the Service
	if err := klineService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Kline service exited with error")
		log.Fatalf("FATAL: Kline service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
