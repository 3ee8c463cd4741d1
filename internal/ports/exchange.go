package ports

import (
	"context"
	"time"

	"binanceMarginBot/internal/domain"
)

// HTTPResponse is the transport-level result of one GET.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	// Kind is the classification of the response made at the transport boundary.
	// ErrorKindNone means a usable 200.
	Kind domain.ErrorKind
	// Code is the exchange error code decoded from a non-200 body, 0 when absent.
	Code int64
}

// KlineTransport issues one HTTP GET for a kline URL.
type KlineTransport interface {
	Get(ctx context.Context, url string) (*HTTPResponse, error)
}

// MarketMetadata exposes the exchange metadata the fetch service needs.
type MarketMetadata interface {
	// TradableBaseAssets lists base assets currently trading against quoteAsset,
	// minus the excluded ones, sorted.
	TradableBaseAssets(ctx context.Context, quoteAsset string, excluded []string) ([]string, error)
	// ServerTimeOffset returns server time minus local time.
	ServerTimeOffset(ctx context.Context) (time.Duration, error)
}
