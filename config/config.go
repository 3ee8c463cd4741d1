package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"binanceMarginBot/internal/adapters/logger" // Import the logger package for LogLevel
	"binanceMarginBot/internal/domain"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey     string
	SecretKey  string
	BaseURL    string
	IsTestnet  bool
	MarginOnly bool // Restrict the symbol universe to margin-tradable pairs

	// Symbol universe
	QuoteAsset     string
	Symbols        []string // Base assets; empty resolves from exchange info
	ExcludedAssets []string

	// Fetch parameters
	Interval          string
	KlineLimit        int
	MaxConcurrency    int
	MaxRetries        int
	BackoffBase       time.Duration
	RequestTimeout    time.Duration
	LatencyBudget     time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	AllowPartial      bool
	SettleDelay       time.Duration // Wait after an interval boundary before the incremental cycle

	// Alerts
	Environment      string
	AlertCooldown    time.Duration
	TelegramBotToken string
	TelegramChatID   string

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// Muted reports whether alert delivery is disabled for this environment.
func (c *Config) Muted() bool {
	return c.Environment == EnvDevelopment
}

// FileConfig is the optional config file named by CONFIG_FILE.
type FileConfig struct {
	QuoteAsset     string   `mapstructure:"quote_asset"`
	Symbols        []string `mapstructure:"symbols"`
	ExcludedAssets []string `mapstructure:"excluded_assets"`
	Interval       string   `mapstructure:"interval"`
	Limit          int      `mapstructure:"limit"`
	TelegramChatID string   `mapstructure:"telegram_chat_id"`
	Environment    string   `mapstructure:"environment"`
}

// LoadFileConfig reads a yaml, json or toml config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config file failed (%s): %w", path, err)
	}
	return &fc, nil
}

// LoadConfig loads configuration from environment variables (.env file), layered over
// the optional config file.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	fc := &FileConfig{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := LoadFileConfig(path)
		if err != nil {
			return nil, err
		}
		fc = loaded
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API. Klines are public, so keys are optional.
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)
	cfg.MarginOnly = getEnvAsBool("MARGIN_ONLY", true)
	defaultBaseURL := "https://api.binance.com"
	if cfg.IsTestnet {
		defaultBaseURL = "https://testnet.binance.vision"
	}
	cfg.BaseURL = strings.TrimRight(getEnv("BINANCE_BASE_URL", defaultBaseURL), "/")

	// Symbol universe
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", orDefault(fc.QuoteAsset, "USDT")))
	if cfg.QuoteAsset == "" {
		errs = append(errs, "QUOTE_ASSET must be set")
	}
	cfg.Symbols = getEnvAsList("SYMBOLS", fc.Symbols)
	cfg.ExcludedAssets = getEnvAsList("EXCLUDED_ASSETS", fc.ExcludedAssets)

	// Fetch parameters
	cfg.Interval = getEnv("KLINE_INTERVAL", orDefault(fc.Interval, "5m"))
	if _, err := domain.ParseInterval(cfg.Interval); err != nil {
		errs = append(errs, fmt.Sprintf("invalid KLINE_INTERVAL: %v", err))
	}

	defaultLimit := 300
	if fc.Limit > 0 {
		defaultLimit = fc.Limit
	}
	cfg.KlineLimit, err = getEnvAsIntRequired("KLINE_LIMIT", defaultLimit)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid KLINE_LIMIT: %v", err))
	} else if cfg.KlineLimit <= 0 || cfg.KlineLimit > 1000 {
		errs = append(errs, "KLINE_LIMIT must be between 1 and 1000")
	}

	cfg.MaxConcurrency, err = getEnvAsIntRequired("MAX_CONCURRENCY", 400)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_CONCURRENCY: %v", err))
	} else if cfg.MaxConcurrency <= 0 {
		errs = append(errs, "MAX_CONCURRENCY must be positive")
	}

	cfg.MaxRetries, err = getEnvAsIntRequired("MAX_RETRIES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RETRIES: %v", err))
	} else if cfg.MaxRetries <= 0 {
		errs = append(errs, "MAX_RETRIES must be positive")
	}

	backoffMs, err := getEnvAsIntRequired("BACKOFF_BASE_MS", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BACKOFF_BASE_MS: %v", err))
	} else if backoffMs <= 0 {
		errs = append(errs, "BACKOFF_BASE_MS must be positive")
	}
	cfg.BackoffBase = time.Duration(backoffMs) * time.Millisecond

	cfg.RequestTimeout, err = getEnvAsSecondsRequired("REQUEST_TIMEOUT_SECONDS", 5)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.LatencyBudget, err = getEnvAsSecondsRequired("LATENCY_BUDGET_SECONDS", 9)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SettleDelay, err = getEnvAsSecondsRequired("SETTLE_DELAY_SECONDS", 3)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.RequestsPerSecond, err = getEnvAsFloatRequired("REQUESTS_PER_SECOND", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REQUESTS_PER_SECOND: %v", err))
	} else if cfg.RequestsPerSecond < 0 {
		errs = append(errs, "REQUESTS_PER_SECOND cannot be negative")
	}

	cfg.AllowPartial = getEnvAsBool("ALLOW_PARTIAL", false)

	// Alerts
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", orDefault(fc.Environment, EnvProduction)))
	cfg.AlertCooldown, err = getEnvAsSecondsRequired("ALERT_COOLDOWN_SECONDS", 600)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", fc.TelegramChatID)
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID == "" {
		errs = append(errs, "TELEGRAM_CHAT_ID must be set when TELEGRAM_BOT_TOKEN is set")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/kline_bot.db")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func orDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsSecondsRequired(key string, defaultValue int) (time.Duration, error) {
	seconds, err := getEnvAsIntRequired(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
