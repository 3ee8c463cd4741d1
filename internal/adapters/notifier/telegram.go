package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"binanceMarginBot/internal/ports"

	"github.com/tidwall/gjson"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	telegramAttempts       = 3
	maxTelegramMessage     = 4096
)

// TelegramConfig holds configuration for the Telegram sender.
type TelegramConfig struct {
	BotToken   string
	ChatID     string
	BaseURL    string // Defaults to the public Bot API
	HTTPClient *http.Client
	RetryDelay time.Duration // Delay unit between attempts, multiplied by the attempt number
	Logger     ports.Logger
	Now        func() time.Time
}

// Telegram delivers alerts through a Telegram bot.
type Telegram struct {
	botToken   string
	chatID     string
	baseURL    string
	client     *http.Client
	retryDelay time.Duration
	logger     ports.Logger
	now        func() time.Time
}

// NewTelegram creates a new Telegram sender.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram sender")
	}
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("%w: telegram bot token and chat id are required", ports.ErrConfigurationError)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Telegram{
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatID,
		baseURL:    baseURL,
		client:     client,
		retryDelay: delay,
		logger:     cfg.Logger,
		now:        now,
	}, nil
}

// Send posts the alert as a plain text message, trying up to three times.
func (t *Telegram) Send(ctx context.Context, subject, body string) error {
	text := fmt.Sprintf("%s %s\n%s", subject, t.now().UTC().Format(time.RFC3339), body)
	text = truncateRunes(text, maxTelegramMessage)
	payload, err := json.Marshal(map[string]string{"chat_id": t.chatID, "text": text})
	if err != nil {
		return fmt.Errorf("telegram send failed: %w: %w", ports.ErrInvalidRequest, err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	var lastErr error
	for i := 0; i < telegramAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("telegram send failed: %w: %w", ports.ErrContextCanceled, ctx.Err())
			case <-time.After(time.Duration(i) * t.retryDelay):
			}
		}
		lastErr = t.post(ctx, url, payload)
		if lastErr == nil {
			return nil
		}
		t.logger.Debug(ctx, "Telegram send attempt failed", map[string]interface{}{"attempt": i + 1, "error": lastErr.Error()})
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", telegramAttempts, lastErr)
}

func (t *Telegram) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status=%d: %s", resp.StatusCode, gjson.GetBytes(body, "description").String())
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return fmt.Errorf("telegram rejected message: %s", gjson.GetBytes(body, "description").String())
	}
	return nil
}

// truncateRunes shortens s to at most limit characters without splitting a rune.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
