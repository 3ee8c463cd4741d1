package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	symbolStatusTrading = "TRADING"
)

// Client implements ports.MarketMetadata on top of the go-binance spot client.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	marginOnly bool
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	BaseURL    string // Overrides the production/testnet URL when set
	UseTestnet bool
	MarginOnly bool // Only list symbols that allow margin trading
	Logger     ports.Logger
	HTTPClient *http.Client
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Debug(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		marginOnly: cfg.MarginOnly,
	}, nil
}

// BaseURL returns the REST base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.spotClient.BaseURL
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch ClassifyCode(apiErr.Code) {
		case domain.ErrorKindRateLimited:
			mappedErr = ports.ErrRateLimited
		case domain.ErrorKindRejected:
			mappedErr = ports.ErrRequestRejected
		case domain.ErrorKindServer:
			mappedErr = ports.ErrExchangeUnavailable
		default:
			mappedErr = ports.ErrUnclassified
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// TradableBaseAssets lists the base assets trading against quoteAsset, sorted,
// with the excluded assets removed.
func (c *Client) TradableBaseAssets(ctx context.Context, quoteAsset string, excluded []string) ([]string, error) {
	op := "TradableBaseAssets"
	quoteAsset = strings.ToUpper(strings.TrimSpace(quoteAsset))
	if quoteAsset == "" {
		return nil, fmt.Errorf("%s failed: %w: quote asset is required", op, ports.ErrInvalidRequest)
	}

	info, err := c.spotClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	skip := make(map[string]bool, len(excluded))
	for _, a := range excluded {
		skip[strings.ToUpper(strings.TrimSpace(a))] = true
	}

	seen := make(map[string]bool)
	assets := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset == "" {
			c.logger.Debug(ctx, op+": symbol without quote asset", map[string]interface{}{"symbol": s.Symbol})
			continue
		}
		if s.QuoteAsset != quoteAsset || s.Status != symbolStatusTrading {
			continue
		}
		if c.marginOnly && !s.IsMarginTradingAllowed {
			continue
		}
		if skip[s.BaseAsset] || seen[s.BaseAsset] {
			continue
		}
		seen[s.BaseAsset] = true
		assets = append(assets, s.BaseAsset)
	}
	sort.Strings(assets)

	c.logger.Info(ctx, op+" resolved", map[string]interface{}{"quoteAsset": quoteAsset, "count": len(assets), "excluded": len(skip)})
	return assets, nil
}

// ServerTimeOffset returns server time minus the local midpoint of the round trip.
func (c *Client) ServerTimeOffset(ctx context.Context) (time.Duration, error) {
	op := "ServerTimeOffset"
	sent := time.Now()
	serverMs, err := c.spotClient.NewServerTimeService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	received := time.Now()
	midpoint := sent.Add(received.Sub(sent) / 2)
	offset := time.UnixMilli(serverMs).Sub(midpoint)
	c.logger.Debug(ctx, op+" measured", map[string]interface{}{"offset": offset.String(), "roundTrip": received.Sub(sent).String()})
	return offset, nil
}
