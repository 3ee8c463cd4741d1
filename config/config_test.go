package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"binanceMarginBot/internal/adapters/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"CONFIG_FILE", "BINANCE_API_KEY", "BINANCE_API_SECRET", "BINANCE_BASE_URL", "IS_TESTNET", "MARGIN_ONLY",
	"QUOTE_ASSET", "SYMBOLS", "EXCLUDED_ASSETS", "KLINE_INTERVAL", "KLINE_LIMIT", "MAX_CONCURRENCY",
	"MAX_RETRIES", "BACKOFF_BASE_MS", "REQUEST_TIMEOUT_SECONDS", "LATENCY_BUDGET_SECONDS",
	"SETTLE_DELAY_SECONDS", "REQUESTS_PER_SECOND", "ALLOW_PARTIAL", "ENVIRONMENT",
	"ALERT_COOLDOWN_SECONDS", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DB_PATH", "LOG_LEVEL",
}

// clearEnv blanks every key so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://api.binance.com", cfg.BaseURL)
	assert.Equal(t, "USDT", cfg.QuoteAsset)
	assert.Empty(t, cfg.Symbols)
	assert.Equal(t, "5m", cfg.Interval)
	assert.Equal(t, 300, cfg.KlineLimit)
	assert.Equal(t, 400, cfg.MaxConcurrency)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 9*time.Second, cfg.LatencyBudget)
	assert.Equal(t, 3*time.Second, cfg.SettleDelay)
	assert.Equal(t, 600*time.Second, cfg.AlertCooldown)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.False(t, cfg.AllowPartial)
	assert.True(t, cfg.MarginOnly)
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.False(t, cfg.Muted())
	assert.Equal(t, "./data/kline_bot.db", cfg.DBPath)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMBOLS", "btc, eth ,,xrp")
	t.Setenv("EXCLUDED_ASSETS", "BUSD")
	t.Setenv("KLINE_INTERVAL", "1h")
	t.Setenv("KLINE_LIMIT", "2")
	t.Setenv("BACKOFF_BASE_MS", "250")
	t.Setenv("REQUESTS_PER_SECOND", "15.5")
	t.Setenv("ALLOW_PARTIAL", "true")
	t.Setenv("ENVIRONMENT", "Development")
	t.Setenv("IS_TESTNET", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"btc", "eth", "xrp"}, cfg.Symbols)
	assert.Equal(t, []string{"BUSD"}, cfg.ExcludedAssets)
	assert.Equal(t, "1h", cfg.Interval)
	assert.Equal(t, 2, cfg.KlineLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffBase)
	assert.Equal(t, 15.5, cfg.RequestsPerSecond)
	assert.True(t, cfg.AllowPartial)
	assert.True(t, cfg.Muted())
	assert.Equal(t, "https://testnet.binance.vision", cfg.BaseURL)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad interval", env: map[string]string{"KLINE_INTERVAL": "7m"}, wantErr: "KLINE_INTERVAL"},
		{name: "limit too large", env: map[string]string{"KLINE_LIMIT": "1001"}, wantErr: "KLINE_LIMIT"},
		{name: "limit not a number", env: map[string]string{"KLINE_LIMIT": "abc"}, wantErr: "KLINE_LIMIT"},
		{name: "zero concurrency", env: map[string]string{"MAX_CONCURRENCY": "0"}, wantErr: "MAX_CONCURRENCY"},
		{name: "negative pacing", env: map[string]string{"REQUESTS_PER_SECOND": "-1"}, wantErr: "REQUESTS_PER_SECOND"},
		{name: "zero budget", env: map[string]string{"LATENCY_BUDGET_SECONDS": "0"}, wantErr: "LATENCY_BUDGET_SECONDS"},
		{name: "token without chat", env: map[string]string{"TELEGRAM_BOT_TOKEN": "x"}, wantErr: "TELEGRAM_CHAT_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_FileLayer(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `quote_asset: busd
symbols: [BTC, ETH]
excluded_assets: [USDC]
interval: 15m
limit: 100
telegram_chat_id: "-1001"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("KLINE_LIMIT", "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "BUSD", cfg.QuoteAsset)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Symbols)
	assert.Equal(t, []string{"USDC"}, cfg.ExcludedAssets)
	assert.Equal(t, "15m", cfg.Interval)
	assert.Equal(t, 50, cfg.KlineLimit, "environment overrides file")
	assert.Equal(t, "-1001", cfg.TelegramChatID)
}

func TestLoadFileConfig_MissingFile(t *testing.T) {
	_, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
