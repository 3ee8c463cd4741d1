package binanceclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"binanceMarginBot/internal/ports"

	"golang.org/x/time/rate"
)

const (
	// Klines responses for limit=1000 are well under this.
	maxBodyBytes = 8 << 20

	defaultMaxConnsPerHost = 400
)

// TransportConfig holds configuration for the kline HTTP transport.
type TransportConfig struct {
	Logger            ports.Logger
	HTTPClient        *http.Client // Optional; a pooled client sized by MaxConnsPerHost is built otherwise
	MaxConnsPerHost   int          // Upper bound on open connections to the exchange host
	RequestsPerSecond float64      // 0 disables pacing
	Burst             int          // Limiter burst; defaults to MaxConnsPerHost
}

// Transport issues kline GET requests and classifies each response at the boundary.
// Per-request deadlines come from the caller's context.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  ports.Logger
}

// NewTransport creates a new kline transport.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for kline transport")
	}
	maxConns := cfg.MaxConnsPerHost
	if maxConns <= 0 {
		maxConns = defaultMaxConnsPerHost
	}

	client := cfg.HTTPClient
	if client == nil {
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok || base == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		tr := base.Clone()
		tr.MaxConnsPerHost = maxConns
		tr.MaxIdleConnsPerHost = maxConns
		tr.MaxIdleConns = maxConns
		tr.IdleConnTimeout = 90 * time.Second
		client = &http.Client{Transport: tr}
	}

	t := &Transport{client: client, logger: cfg.Logger}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = maxConns
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		cfg.Logger.Info(context.Background(), "Kline transport pacing enabled", map[string]interface{}{"rps": cfg.RequestsPerSecond, "burst": burst})
	}
	return t, nil
}

// Get performs one GET. A non-nil error means no HTTP response was obtained.
func (t *Transport) Get(ctx context.Context, url string) (*ports.HTTPResponse, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for request slot: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	kind, code := ClassifyResponse(resp.StatusCode, body)
	return &ports.HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		Kind:       kind,
		Code:       code,
	}, nil
}
